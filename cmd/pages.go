package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/prodtrack/cli"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/spf13/cobra"
)

type pageSummary struct {
	Name  string       `json:"name"`
	Title string       `json:"title"`
	Mode  string       `json:"mode"`
	Tabs  []tabSummary `json:"tabs"`
}

type tabSummary struct {
	Label     string   `json:"label"`
	ListEvent string   `json:"listEvent"`
	KeyField  string   `json:"keyField,omitempty"`
	ParentKey string   `json:"parentKey,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}

// NewPagesCmd lists the configured page layouts.
func NewPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List page layouts and their tabs",
		Example: `  # Built-in pages merged with prodtrack.yml
  prodtrack pages
  prodtrack pages --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			defs := pages.Resolve(cfg.Pages)
			summaries := make([]pageSummary, 0, len(defs))
			for _, name := range pages.Names(defs) {
				def := defs[name]
				s := pageSummary{Name: def.Name, Title: def.Title, Mode: def.Mode.Name()}
				for _, tab := range def.Tabs {
					s.Tabs = append(s.Tabs, tabSummary{
						Label:     tab.Label,
						ListEvent: tab.ListEvent,
						KeyField:  tab.KeyField,
						ParentKey: tab.ParentKey,
						Columns:   tab.Columns,
					})
				}
				summaries = append(summaries, s)
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(summaries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			for _, s := range summaries {
				pretty.Header(fmt.Sprintf("%s (%s, %s)", s.Title, s.Name, s.Mode))
				rows := make([][]string, 0, len(s.Tabs))
				for i, tab := range s.Tabs {
					rows = append(rows, []string{
						fmt.Sprint(i), tab.Label, tab.ListEvent, tab.KeyField, tab.ParentKey, strings.Join(tab.Columns, ","),
					})
				}
				pretty.Table([]string{"#", "LABEL", "LIST", "KEY", "PARENT", "COLUMNS"}, rows)
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}
