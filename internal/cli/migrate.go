package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/internal/repository"
)

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the event store schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("database.driver %q has no schema to migrate", cfg.Database.Driver)
			}

			status, err := repository.Migrate(cfg.Database.MigrationsPath, cfg.Database.Postgres.ConnectionString(), args[0] == "up")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output != "table" {
				return render(out, opts.output, map[string]interface{}{
					"direction": args[0],
					"version":   status.Version,
					"dirty":     status.Dirty,
					"changed":   status.Changed,
				})
			}
			if !status.Changed {
				fmt.Fprintf(out, "No change; schema at version %d\n", status.Version)
				return nil
			}
			fmt.Fprintf(out, "Migrated %s; schema at version %d (dirty=%t)\n", args[0], status.Version, status.Dirty)
			return nil
		},
	}
}
