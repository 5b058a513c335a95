package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/grovetools/prodtrack/cli"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/spf13/cobra"
)

// NewMetricsCmd shows or clears the persisted usage metrics.
func NewMetricsCmd() *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show persisted usage metrics",
		Example: `  prodtrack metrics
  prodtrack metrics --json
  prodtrack metrics --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := tracker.NewPersister(cfg.Tracker.Persist)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("metrics persistence is disabled (tracker.persist.backend: none)")
			}
			if c, ok := p.(io.Closer); ok {
				defer c.Close()
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if clearAll {
				if err := p.Clear(); err != nil {
					return err
				}
				pretty.Success("Usage metrics cleared")
				return nil
			}

			loaded, err := p.Load()
			if err != nil {
				return err
			}
			metrics := make([]tracker.Metric, 0, len(loaded))
			for _, m := range loaded {
				metrics = append(metrics, m)
			}
			sort.Slice(metrics, func(i, j int) bool {
				if metrics[i].Calls != metrics[j].Calls {
					return metrics[i].Calls > metrics[j].Calls
				}
				return tracker.MetricKey(metrics[i].Page, metrics[i].Module, metrics[i].Function) <
					tracker.MetricKey(metrics[j].Page, metrics[j].Module, metrics[j].Function)
			})

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(metrics, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printMetrics(pretty, metrics)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all persisted metrics")
	return cmd
}
