package cli

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/service/mcp"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/urfave/cli/v3"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio with backup and auto-capture schedulers",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			events := make(chan capture.Event, 64)
			a, err := cfg.newApp(ctx, capture.WithEvents(events))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go logEvents(ctx, events)

			a.uc.Start(ctx)
			defer a.uc.Stop()

			server := mcp.NewServer(a.uc, version)
			return server.Run(ctx, &mcpsdk.StdioTransport{})
		},
	}
}

func logEvents(ctx context.Context, events <-chan capture.Event) {
	logger := logging.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			logger.Info("session event",
				"type", ev.Type,
				"session_id", ev.SessionID,
				"context_id", ev.ContextID,
			)
		}
	}
}
