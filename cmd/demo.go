package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grovetools/prodtrack/cli"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/spf13/cobra"
)

// NewDemoCmd drills down through a page the way a user would: load a tab,
// pick a row, move to the next tab.
func NewDemoCmd() *cobra.Command {
	var (
		page    string
		pick    int
		live    bool
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk a page tab by tab and print the tracked actions",
		Long: "Mounts a page, loads every tab in turn and selects a row on each, " +
			"then prints the action history and usage metrics the session recorded. " +
			"Sample data is used unless --live is set.",
		Example: `  prodtrack demo
  prodtrack demo --page products --pick 1
  # Use the configured fetch backend and metrics store
  prodtrack demo --live --persist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "demo")

			var opts []pages.Option
			opts = append(opts, pages.WithLogger(logger))
			if !live {
				opts = append(opts, pages.WithFetcher(fetch.NewMemory(pages.SampleData())))
			}
			if !persist {
				opts = append(opts, pages.WithPersister(nil))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sess, err := pages.NewSession(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer sess.Teardown(context.Background())

			return runDemo(ctx, cmd.OutOrStdout(), sess, page, pick)
		},
	}

	cmd.Flags().StringVarP(&page, "page", "p", "ingredients", "Page to walk")
	cmd.Flags().IntVar(&pick, "pick", 0, "Row index to select on each tab")
	cmd.Flags().BoolVar(&live, "live", false, "Use the configured fetch backend instead of sample data")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save usage metrics to the configured backend")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, sess *pages.Session, name string, pick int) error {
	p, err := sess.Mount(ctx, name)
	if err != nil {
		return err
	}
	pretty := logging.NewPrettyLogger().WithWriter(out)
	ctrl := p.Controller

	for i := 0; i < p.Presenter.TabCount(); i++ {
		if i > 0 {
			if err := ctrl.HandleTabChange(ctx, i); err != nil {
				pretty.WarnPretty(err.Error())
				break
			}
		}

		rows, err := ctrl.Load(ctx)
		if err != nil {
			return err
		}

		tab, _ := p.Presenter.Tab(i)
		columns := p.Presenter.Columns(i)
		pretty.Header(fmt.Sprintf("%s: %s (%d rows)", p.Definition.Title, tab.Label, len(rows)))
		pretty.Table(columns, rowCells(rows, columns))

		if len(rows) == 0 {
			pretty.Muted("nothing to select")
			break
		}
		idx := pick
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		ctrl.HandleRowSelection(ctx, rows[idx])
		pretty.Field("selected", rowLabel(rows[idx], columns))
		fmt.Fprintln(out)
	}

	pretty.Header("Tracked actions (newest first)")
	history := sess.Tracker.History()
	histRows := make([][]string, 0, len(history))
	for _, r := range history {
		histRows = append(histRows, []string{r.Timestamp.Format("15:04:05.000"), r.ActionType, r.Page, r.Module, r.Function})
	}
	pretty.Table([]string{"TIME", "ACTION", "PAGE", "MODULE", "FUNCTION"}, histRows)
	fmt.Fprintln(out)

	printMetrics(pretty, sess.Tracker.SortedMetrics())
	return nil
}

func printMetrics(pretty *logging.PrettyLogger, metrics []tracker.Metric) {
	pretty.Header("Usage metrics")
	if len(metrics) == 0 {
		pretty.Muted("no metrics recorded")
		return
	}
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{m.Page, m.Module, m.Function, fmt.Sprint(m.Calls), m.LastCall.Format(time.RFC3339)})
	}
	pretty.Table([]string{"PAGE", "MODULE", "FUNCTION", "CALLS", "LAST CALL"}, rows)
}

func rowCells(rows []fetch.Row, columns []string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := row[c]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		out = append(out, cells)
	}
	return out
}

func rowLabel(row fetch.Row, columns []string) string {
	for _, c := range columns {
		if v, ok := row[c]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprint(row)
}
