package main

import (
	"os"

	"github.com/grovetools/prodtrack/cli"
	"github.com/grovetools/prodtrack/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"prodtrack",
		"Tabbed production-tracking pages with action tracking",
	)

	rootCmd.AddCommand(cmd.NewPagesCmd())
	rootCmd.AddCommand(cmd.NewDemoCmd())
	rootCmd.AddCommand(cmd.NewMetricsCmd())
	rootCmd.AddCommand(cmd.NewDebugCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("prodtrack"))
	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		opts := cli.GetOptions(rootCmd)
		cli.NewErrorHandler(opts.Verbose, os.Stderr).Handle(err)
		os.Exit(1)
	}
}
