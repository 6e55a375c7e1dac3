package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Create, list, restore and prune backups",
		Commands: []*cli.Command{
			backupCreateCommand(),
			backupListCommand(),
			backupRestoreCommand(),
			backupDeleteCommand(),
			backupSweepCommand(),
		},
	}
}

// withSpinner shows progress on the error writer while fn runs
func withSpinner(c *cli.Command, message string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(errWriter(c)))
	s.Suffix = " " + message
	s.Start()
	err := fn()
	s.Stop()
	return err
}

func backupCreateCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "create",
		Usage: "Snapshot every context into a new backup",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var id string
			if err := withSpinner(c, "Creating backup...", func() error {
				var err error
				id, err = a.uc.CreateBackup(ctx)
				return err
			}); err != nil {
				return goerr.Wrap(err, "failed to create backup")
			}

			fmt.Fprintf(c.Root().Writer, "Backup created: %s\n", id)
			return nil
		},
	}
}

func backupListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List backups, newest first",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.uc.ListBackups(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list backups")
			}
			if len(backups) == 0 {
				fmt.Fprintf(c.Root().Writer, "No backups found\n")
				return nil
			}

			for _, b := range backups {
				created := time.UnixMilli(b.Timestamp).Format(time.RFC3339)
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%d contexts\tv%s\n", b.Filename, created, b.ContextCount, b.Version)
			}
			return nil
		},
	}
}

func backupRestoreCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "restore",
		Usage:     "Replace every context with the contents of a backup",
		ArgsUsage: "<backup-id>",
		Flags:     withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "backup-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var n int
			if err := withSpinner(c, "Restoring backup...", func() error {
				var err error
				n, err = a.uc.RestoreBackup(ctx, id)
				return err
			}); err != nil {
				return goerr.Wrap(err, "failed to restore backup", goerr.V("id", id))
			}

			fmt.Fprintf(c.Root().Writer, "Restored %d contexts from %s\n", n, id)
			return nil
		},
	}
}

func backupDeleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a backup",
		ArgsUsage: "<backup-id>",
		Flags:     withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			id, err := requireArg(c, "backup-id")
			if err != nil {
				return err
			}

			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.uc.DeleteBackup(ctx, id)
			if err != nil {
				return goerr.Wrap(err, "failed to delete backup", goerr.V("id", id))
			}
			if !deleted {
				fmt.Fprintf(c.Root().Writer, "Backup not found: %s\n", id)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Backup deleted: %s\n", id)
			return nil
		},
	}
}

func backupSweepCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete backups older than the retention period",
		Flags: withGlobal(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.uc.SweepBackups(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to sweep backups")
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %d expired backups (retention %d days)\n",
				n, a.uc.BackupConfig().RetentionPeriodDays)
			return nil
		},
	}
}
