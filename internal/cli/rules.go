package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/internal/detector"
)

type ruleView struct {
	Name      string `json:"name" yaml:"name"`
	Pattern   string `json:"pattern" yaml:"pattern"`
	Severity  string `json:"severity" yaml:"severity"`
	Action    string `json:"action" yaml:"action"`
	Threshold int    `json:"threshold" yaml:"threshold"`
	WindowMin int    `json:"time_window_min" yaml:"time_window_min"`
	Incident  string `json:"incident,omitempty" yaml:"incident,omitempty"`
}

func newRulesCommand(opts *options) *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Threat rule documents",
	}

	rules.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Parse and validate a rule document",
		Long:  "Parse a versioned threat rule document and print the compiled table. Without a file the built-in rule set is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				set []*detector.Rule
				err error
			)
			source := "built-in"
			if len(args) == 1 {
				source = args[0]
				set, err = detector.LoadRules(source)
			} else {
				set, err = detector.DefaultRules()
			}
			if err != nil {
				return fmt.Errorf("invalid rule document %s: %w", source, err)
			}

			views := make([]ruleView, len(set))
			for i, r := range set {
				views[i] = ruleView{
					Name:      r.Name,
					Pattern:   r.Pattern.String(),
					Severity:  r.Severity.String(),
					Action:    string(r.Action),
					Threshold: r.Threshold,
					WindowMin: int(r.TimeWindow.Minutes()),
					Incident:  string(r.Incident),
				}
			}

			out := cmd.OutOrStdout()
			if opts.output != "table" {
				return render(out, opts.output, views)
			}
			t := newTable(out, "NAME", "PATTERN", "SEVERITY", "ACTION", "THRESHOLD", "WINDOW", "INCIDENT")
			for _, v := range views {
				t.row(v.Name, v.Pattern, v.Severity, v.Action, strconv.Itoa(v.Threshold), strconv.Itoa(v.WindowMin)+"m", v.Incident)
			}
			if err := t.flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d rules valid (%s, version %d)\n", len(views), source, detector.RulesVersion)
			return nil
		},
	})
	return rules
}
