package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage buffered sessions awaiting capture",
		Commands: []*cli.Command{
			sessionRegisterCommand(),
			sessionUpdateCommand(),
			sessionCaptureCommand(),
			sessionCaptureAllCommand(),
			sessionEndCommand(),
			sessionListCommand(),
		},
	}
}

func sessionRegisterCommand() *cli.Command {
	var (
		cfg         config
		id          string
		content     string
		projectPath string
	)

	return &cli.Command{
		Name:  "register",
		Usage: "Start buffering a session",
		Flags: withGlobal(&cfg,
			&cli.StringFlag{
				Name:        "id",
				Usage:       "Session ID. Generated when omitted",
				Destination: &id,
			},
			&cli.StringFlag{
				Name:        "content",
				Usage:       "Initial content. Use - to read from stdin",
				Destination: &content,
			},
			&cli.StringFlag{
				Name:        "project",
				Usage:       "Project path of the session",
				Destination: &projectPath,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			body, err := readContent(content)
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := a.uc.RegisterSession(ctx, model.SessionID(id), body, projectPath)
			fmt.Fprintf(c.Root().Writer, "Session registered: %s\n", sess.ID)
			return nil
		},
	}
}

func sessionUpdateCommand() *cli.Command {
	var (
		cfg     config
		content string
	)

	return &cli.Command{
		Name:      "update",
		Usage:     "Replace the buffered content of a session",
		ArgsUsage: "<session-id>",
		Flags: withGlobal(&cfg,
			&cli.StringFlag{
				Name:        "content",
				Usage:       "New content. Use - to read from stdin",
				Required:    true,
				Destination: &content,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "session-id")
			if err != nil {
				return err
			}
			body, err := readContent(content)
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := a.uc.UpdateSession(ctx, model.SessionID(id), body)
			fmt.Fprintf(c.Root().Writer, "Session updated: %s (%d bytes)\n", sess.ID, len(sess.Content))
			return nil
		},
	}
}

func sessionCaptureCommand() *cli.Command {
	var (
		cfg  config
		meta metadataFlags
	)

	return &cli.Command{
		Name:      "capture",
		Usage:     "Commit a session's buffer as a context",
		ArgsUsage: "<session-id>",
		Flags:     withGlobal(&cfg, meta.flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "session-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			patch := meta.toModel()
			captured, err := a.uc.CaptureSession(ctx, model.SessionID(id), &patch)
			if err != nil {
				return goerr.Wrap(err, "failed to capture session", goerr.V("id", id))
			}
			if !captured {
				fmt.Fprintf(c.Root().Writer, "Session %s not captured (unknown or too short)\n", id)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Session %s captured\n", id)
			return nil
		},
	}
}

func sessionCaptureAllCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "capture-all",
		Usage: "Capture every idle or long-running session",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n := a.uc.CaptureAllSessions(ctx)
			fmt.Fprintf(c.Root().Writer, "Captured %d sessions\n", n)
			return nil
		},
	}
}

func sessionEndCommand() *cli.Command {
	var (
		cfg       config
		noCapture bool
	)

	return &cli.Command{
		Name:      "end",
		Usage:     "Stop tracking a session, capturing it first by default",
		ArgsUsage: "<session-id>",
		Flags: withGlobal(&cfg,
			&cli.BoolFlag{
				Name:        "no-capture",
				Usage:       "Drop the buffer without capturing it",
				Destination: &noCapture,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "session-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			captured, err := a.uc.EndSession(ctx, model.SessionID(id), !noCapture)
			if err != nil {
				return goerr.Wrap(err, "failed to end session", goerr.V("id", id))
			}

			fmt.Fprintf(c.Root().Writer, "Session %s ended (captured: %t)\n", id, captured)
			return nil
		},
	}
}

func sessionListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List active sessions, most recently updated first",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions := a.uc.GetActiveSessions(ctx)
			if len(sessions) == 0 {
				fmt.Fprintf(c.Root().Writer, "No active sessions\n")
				return nil
			}

			for _, s := range sessions {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%d bytes\tcaptured=%t\t%s\n",
					s.ID, s.LastUpdateTime.Format(time.RFC3339), len(s.Content), s.Captured, s.ProjectPath)
			}
			return nil
		},
	}
}
