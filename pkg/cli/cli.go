package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "ctxkeep",
		Usage:   "Context persistence, backup and session capture",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			contextCommand(),
			backupCommand(),
			sessionCommand(),
			shellCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// errWriter returns the root error writer, stderr by default
func errWriter(c *cli.Command) io.Writer {
	if w := c.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintf(w, "%s\n", string(data))
	return nil
}

// requireArg returns the first positional argument
func requireArg(c *cli.Command, name string) (string, error) {
	if c.Args().Len() < 1 || c.Args().First() == "" {
		return "", goerr.New("argument is required", goerr.V("name", name))
	}
	return c.Args().First(), nil
}
