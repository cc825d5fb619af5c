package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/seeder"
)

func newSeedCommand(opts *options) *cobra.Command {
	var (
		count    int
		seed     int64
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed <scenario>",
		Short: "Post synthetic traffic to a running service",
		Long: `Post synthetic traffic to a running guardrail.

Scenarios:
  page-views    benign page views from many visitors
  client-log    client error logs from a single noisy browser
  brute-force   repeated failed logins from one address
  injection     SQL injection and XSS probes

Examples:
  guardctl seed brute-force --count 6
  guardctl seed page-views --count 500 --interval 20ms --server http://guardrail:8090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := seeder.ParseScenario(args[0])
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			r := seeder.NewRunner(opts.serverURL, seed, logging.Discard())
			r.Interval = interval
			sum, err := r.Run(cmd.Context(), sc, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output != "table" {
				return render(out, opts.output, sum)
			}
			statuses := make([]int, 0, len(sum.ByStatus))
			for s := range sum.ByStatus {
				statuses = append(statuses, s)
			}
			sort.Ints(statuses)

			t := newTable(out, "STATUS", "COUNT")
			for _, s := range statuses {
				t.row(strconv.Itoa(s), strconv.Itoa(sum.ByStatus[s]))
			}
			if sum.Failed > 0 {
				t.row("failed", strconv.Itoa(sum.Failed))
			}
			if err := t.flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSent %d %s requests to %s\n", sum.Sent, sc, opts.serverURL)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of requests")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between requests")
	return cmd
}
