package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/zeros/manifest"
	"github.com/GoCodeAlone/zeros/status"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		src   sourceFlags
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve <manifest>",
		Short: "Boot, then serve boot status over HTTP until interrupted",
		Long: `serve boots the manifest and keeps running: it exposes /healthz and /boot/*
on the status address, re-runs the self-check on selfcheck_schedule, and with
--watch reboots whenever the manifest's module list changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			source, err := src.source(a.cfg)
			if err != nil {
				return err
			}
			bl, err := a.newBootloader(m, source)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.StatusAddr
			}

			g, ctx := errgroup.WithContext(ctx)

			srv := status.NewServer(bl, a.logger)
			g.Go(func() error { return srv.ListenAndServe(ctx, addr) })

			g.Go(func() error {
				// Boot failures are served on /healthz rather than ending the process.
				report, _ := bl.Boot(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
				return nil
			})

			if spec := a.cfg.SelfCheckSchedule; spec != "" {
				sched, err := bl.ScheduleSelfCheck(ctx, spec)
				if err != nil {
					return err
				}
				g.Go(func() error {
					<-ctx.Done()
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return sched.Stop(stopCtx)
				})
			}

			if watch {
				w := manifest.NewWatcher(args[0], func(next *manifest.Manifest) {
					a.logger.Info("Manifest changed, rebooting", "modules", len(next.Declaration))
					bl.SetDeclaration(next.Declaration)
					if report, err := bl.Boot(ctx); err != nil {
						a.logger.Error("Reboot failed", "error", err)
					} else {
						a.logger.Info("Reboot complete", "summary", report.Summary())
					}
				})
				w.OnError = func(err error) {
					a.logger.Warn("Manifest watch error", "error", err)
				}
				g.Go(func() error { return w.Run(ctx) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "status listen address (overrides status_addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reboot when the manifest changes")
	return cmd
}
