// Package cli implements guardctl, the operator command line for guardrail.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/internal/config"
)

// Version is stamped at build time.
var Version = "0.1.0"

type options struct {
	configPath string
	serverURL  string
	output     string
}

// loadConfig reads the service configuration the same way the server does.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// NewRootCommand builds the guardctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "guardctl",
		Short: "guardrail operator CLI",
		Long: `guardctl manages a guardrail deployment.

Validate threat rules, mint bearer tokens, run schema migrations, seed
synthetic traffic and query the admin security-data endpoint.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "service config file (env GUARDRAIL_* overrides)")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8090", "guardrail base URL")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml")

	root.AddCommand(
		newRulesCommand(opts),
		newTokenCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newAdminCommand(opts),
	)
	return root
}

// Execute runs guardctl with the process arguments.
func Execute() error {
	root := NewRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
