package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/prodtrack/cli"
	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/internal/debug"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/spf13/cobra"
)

// NewDebugCmd returns the debug command with its subcommands.
func NewDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Inspect a live session",
		Long:  "Serve the session's subscribers, store, action history and metrics over HTTP, with a websocket stream of dispatched actions.",
	}
	cmd.AddCommand(newDebugServeCmd())
	return cmd
}

func newDebugServeCmd() *cobra.Command {
	var (
		addr   string
		sample bool
		mount  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the debug server in the foreground",
		Example: `  prodtrack debug serve
  prodtrack debug serve --addr 127.0.0.1:9000 --mount ingredients,products`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !debug.Available {
				return fmt.Errorf("debug surface is not included in this build")
			}

			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "debug")
			if addr == "" {
				addr = cfg.Debug.Addr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var opts []pages.Option
			opts = append(opts, pages.WithLogger(logger))
			if sample {
				opts = append(opts, pages.WithFetcher(fetch.NewMemory(pages.SampleData())))
			}
			sess, err := pages.NewSession(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer sess.Teardown(context.Background())

			for _, name := range mount {
				if _, err := sess.Mount(ctx, name); err != nil {
					return err
				}
			}

			if cfgPath != "" {
				watcher, err := config.NewWatcher(cfgPath, 0, logger, func(next *config.Config) {
					tracker.SetEnabled(next.TrackingEnabled())
					logger.WithField("tracking", next.TrackingEnabled()).Info("Applied reloaded configuration")
				})
				if err != nil {
					logger.WithError(err).Warn("Config watching disabled")
				} else {
					defer watcher.Close()
					go watcher.Start(ctx)
				}
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)
			go func() {
				select {
				case <-stop:
					logger.Info("Received stop signal")
					cancel()
				case <-ctx.Done():
				}
			}()

			srv := debug.New(sess, logger)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: debug.addr from config)")
	cmd.Flags().BoolVar(&sample, "sample", true, "Back list queries with sample data")
	cmd.Flags().StringSliceVar(&mount, "mount", []string{"ingredients"}, "Pages to mount at startup")
	return cmd
}
