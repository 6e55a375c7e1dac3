package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/service"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func contextCommand() *cli.Command {
	return &cli.Command{
		Name:  "context",
		Usage: "Manage context records",
		Commands: []*cli.Command{
			contextAddCommand(),
			contextGetCommand(),
			contextListCommand(),
			contextUpdateCommand(),
			contextDeleteCommand(),
			contextSearchCommand(),
			contextSimilarCommand(),
		},
	}
}

// metadataFlags binds the user editable metadata fields
type metadataFlags struct {
	tags     []string
	priority string
	project  string
}

func (m *metadataFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Tag (repeatable)",
			Destination: &m.tags,
		},
		&cli.StringFlag{
			Name:        "priority",
			Usage:       "Priority (low, medium, high, critical)",
			Destination: &m.priority,
		},
		&cli.StringFlag{
			Name:        "project",
			Usage:       "Project name or path",
			Destination: &m.project,
		},
	}
}

func (m *metadataFlags) toModel() model.Metadata {
	return model.Metadata{
		Tags:     m.tags,
		Priority: model.Priority(m.priority),
		Project:  m.project,
	}
}

// readContent takes the content flag, or stdin when it is "-"
func readContent(content string) (string, error) {
	if content != "-" {
		return content, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read content from stdin")
	}
	return string(data), nil
}

func printContextLine(w io.Writer, c *model.Context) {
	summary := strings.ReplaceAll(c.Content, "\n", " ")
	if len(summary) > 60 {
		summary = summary[:57] + "..."
	}
	updated := time.UnixMilli(c.LastModified()).Format(time.RFC3339)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, updated, strings.Join(c.Metadata.Tags, ","), summary)
}

func contextAddCommand() *cli.Command {
	var (
		cfg     config
		meta    metadataFlags
		content string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Context body. Use - to read from stdin",
			Required:    true,
			Destination: &content,
		},
	}, meta.flags()...)

	return &cli.Command{
		Name:  "add",
		Usage: "Add a context record",
		Flags: withGlobal(&cfg, flags...),
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

			created, err := a.uc.CreateContext(ctx, body, meta.toModel())
			if err != nil {
				return goerr.Wrap(err, "failed to create context")
			}

			fmt.Fprintf(c.Root().Writer, "Context created: %s\n", created.ID)
			return nil
		},
	}
}

func contextGetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "get",
		Usage:     "Show a context record as JSON",
		ArgsUsage: "<context-id>",
		Flags:     withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "context-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			found, ok := a.uc.GetContext(ctx, model.ContextID(id))
			if !ok {
				return goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", id))
			}
			return writeJSON(c.Root().Writer, found)
		},
	}
}

func contextListCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	return &cli.Command{
		Name:  "list",
		Usage: "List context records, newest first",
		Flags: withGlobal(&cfg,
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of contexts (0 for all)",
				Value:       50,
				Destination: &limit,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, item := range a.uc.ListContexts(ctx, int(limit)) {
				printContextLine(c.Root().Writer, item)
			}
			return nil
		},
	}
}

func contextUpdateCommand() *cli.Command {
	var (
		cfg     config
		meta    metadataFlags
		content string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "content",
			Usage:       "New body. Use - to read from stdin. Omit to keep the current body",
			Destination: &content,
		},
	}, meta.flags()...)

	return &cli.Command{
		Name:      "update",
		Usage:     "Update a context record",
		ArgsUsage: "<context-id>",
		Flags:     withGlobal(&cfg, flags...),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "context-id")
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

			patch := meta.toModel()
			updated, err := a.uc.UpdateContext(ctx, model.ContextID(id), body, &patch)
			if err != nil {
				return goerr.Wrap(err, "failed to update context")
			}
			if updated == nil {
				return goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", id))
			}

			fmt.Fprintf(c.Root().Writer, "Context updated: %s\n", updated.ID)
			return nil
		},
	}
}

func contextDeleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a context record",
		ArgsUsage: "<context-id>",
		Flags:     withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "context-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.uc.DeleteContext(ctx, model.ContextID(id))
			if err != nil {
				return goerr.Wrap(err, "failed to delete context")
			}
			if !deleted {
				fmt.Fprintf(c.Root().Writer, "Context not found: %s\n", id)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Context deleted: %s\n", id)
			return nil
		},
	}
}

func contextSearchCommand() *cli.Command {
	var (
		cfg   config
		query string
		tags  []string
		limit int64
	)

	return &cli.Command{
		Name:  "search",
		Usage: "Search context records by text and tags",
		Flags: withGlobal(&cfg,
			&cli.StringFlag{
				Name:        "query",
				Aliases:     []string{"q"},
				Usage:       "Text to search for",
				Destination: &query,
			},
			&cli.StringSliceFlag{
				Name:        "tag",
				Aliases:     []string{"t"},
				Usage:       "Required tag (repeatable)",
				Destination: &tags,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of results",
				Value:       20,
				Destination: &limit,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			results := a.uc.SearchContexts(ctx, contexts.SearchQuery{
				Text:  query,
				Tags:  tags,
				Limit: int(limit),
			})
			if len(results) == 0 {
				fmt.Fprintf(c.Root().Writer, "No contexts found\n")
				return nil
			}
			for _, item := range results {
				printContextLine(c.Root().Writer, item)
			}
			return nil
		},
	}
}

func contextSimilarCommand() *cli.Command {
	var (
		cfg        config
		maxResults int64
	)

	return &cli.Command{
		Name:      "similar",
		Usage:     "Rank context records by semantic similarity (requires an embedding provider)",
		ArgsUsage: "<query>",
		Flags: withGlobal(&cfg,
			&cli.IntFlag{
				Name:        "max-results",
				Usage:       "Maximum number of matches",
				Destination: &maxResults,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if c.Args().Len() == 0 {
				return goerr.New("query is required")
			}
			query := strings.Join(c.Args().Slice(), " ")

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			matches, err := a.uc.FindSimilar(ctx, query, service.SimilarQuery{
				MaxResults: int(maxResults),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to find similar contexts")
			}

			if len(matches) == 0 {
				fmt.Fprintf(c.Root().Writer, "No similar contexts found\n")
				return nil
			}
			for i, m := range matches {
				fmt.Fprintf(c.Root().Writer, "%d. %s (score %.3f)\n", i+1, m.Context.ID, m.Score)
				fmt.Fprintf(c.Root().Writer, "   %s\n", strings.ReplaceAll(m.Context.Content, "\n", " "))
			}
			return nil
		},
	}
}
