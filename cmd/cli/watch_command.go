package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/MediaDNA/internal/metrics"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var metricsAddr string
	var noScan bool

	cmd := &cobra.Command{
		Use:   "watch [root...]",
		Short: "Keep the index in sync with directory trees until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			roots := args
			if len(roots) == 0 {
				roots = cfg.Watch.Roots
			}
			if len(roots) == 0 {
				return errors.New("no roots given and watch.roots is empty")
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = cfg.Watch.MetricsAddr
			}
			log := ctx.serviceLogger()

			return ctx.withService(cmd.Context(), true, nil, func(svc mediadna.Service) error {
				runCtx := cmd.Context()
				out := cmd.OutOrStdout()

				if metricsAddr != "" {
					srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
					go func() {
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							log.Errorf("metrics server: %v", err)
						}
					}()
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						srv.Shutdown(shutdownCtx)
					}()
					fmt.Fprintf(out, "Metrics on http://%s/metrics\n", metricsAddr)
				}

				if !noScan {
					summary, err := svc.AddPaths(runCtx, roots)
					printSummary(out, summary)
					if err != nil && runCtx.Err() == nil {
						warnLine(out, "initial scan: %v", err)
					}
				}

				w, err := watch.New(svc, watch.Options{
					Debounce:  cfg.DebounceInterval(),
					QueueSize: cfg.Watch.QueueSize,
					Exclude:   []string{cfg.Dedup.TrashDir},
					Logger:    log,
				})
				if err != nil {
					return err
				}
				for _, root := range roots {
					if err := w.Add(root); err != nil {
						return fmt.Errorf("watch %s: %w", root, err)
					}
				}
				okLine(out, "Watching %d directories, press Ctrl+C to stop", w.Directories())

				if err := w.Run(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(out, "Stopped")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "Skip the initial scan of the roots")
	return cmd
}
