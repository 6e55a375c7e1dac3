package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const shellHelp = `Commands:
  /new [project]   end the current session (capturing it) and start a new one
  /capture         capture the current session now
  /end             end the current session and capture it
  /search <text>   search stored contexts
  /help            show this help
  /exit            end the session and quit
Any other line is appended to the current session as a user note.
`

func shellCommand() *cli.Command {
	var (
		cfg         config
		projectPath string
	)

	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive note taking buffered into a captured session",
		Flags: withGlobal(&cfg,
			&cli.StringFlag{
				Name:        "project",
				Usage:       "Project path recorded on the session",
				Destination: &projectPath,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if projectPath == "" {
				if wd, err := os.Getwd(); err == nil {
					projectPath = wd
				}
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "ctxkeep> ",
				HistoryFile:     filepath.Join(cfg.dataDir, "shell_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       "/exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			sh := &shell{
				app:         a,
				mgr:         session.New(a.capture),
				out:         c.Root().Writer,
				projectPath: projectPath,
			}
			sess := sh.mgr.Start(ctx, projectPath)
			fmt.Fprintf(sh.out, "Session %s started. Type /help for commands.\n", sess.ID)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return sh.exit(ctx)
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				done, err := sh.handle(ctx, strings.TrimSpace(line))
				if err != nil {
					fmt.Fprintf(sh.out, "Error: %v\n", err)
				}
				if done {
					return nil
				}
			}
		},
	}
}

type shell struct {
	app         *app
	mgr         *session.Manager
	out         io.Writer
	projectPath string
}

// handle runs one input line and reports whether the shell should quit
func (sh *shell) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		sh.mgr.Append(ctx, "user", line)
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/new":
		project := sh.projectPath
		if arg != "" {
			project = arg
		}
		sess := sh.mgr.Start(ctx, project)
		fmt.Fprintf(sh.out, "Session %s started\n", sess.ID)

	case "/capture":
		captured, err := sh.mgr.Capture(ctx, nil)
		if err != nil {
			return false, err
		}
		if !captured {
			fmt.Fprintf(sh.out, "Nothing captured (no session or content too short)\n")
		} else {
			fmt.Fprintf(sh.out, "Session captured\n")
		}

	case "/end":
		captured, err := sh.mgr.End(ctx, true)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "Session ended (captured: %t)\n", captured)

	case "/search":
		if arg == "" {
			return false, goerr.New("search text is required")
		}
		results := sh.app.uc.SearchContexts(ctx, contexts.SearchQuery{Text: arg, Limit: 10})
		if len(results) == 0 {
			fmt.Fprintf(sh.out, "No contexts found\n")
		}
		for _, item := range results {
			printContextLine(sh.out, item)
		}

	case "/help":
		fmt.Fprint(sh.out, shellHelp)

	case "/exit", "/quit":
		return true, sh.exit(ctx)

	default:
		fmt.Fprintf(sh.out, "Unknown command: %s\n", cmd)
	}

	return false, nil
}

func (sh *shell) exit(ctx context.Context) error {
	captured, err := sh.mgr.End(ctx, true)
	if err != nil {
		return goerr.Wrap(err, "failed to end session")
	}
	if captured {
		fmt.Fprintf(sh.out, "Session captured\n")
	}
	return nil
}
