package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"mediashelf/internal/jobs"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
	"mediashelf/internal/registry"
	"mediashelf/internal/server"
	"mediashelf/internal/sharing"
	"mediashelf/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Share the library with remote users over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Tracing.Enabled {
				tracer, err := tracing.NewTracer(runCtx, cfg.Tracing.Exporter, cfg.Tracing.Endpoint)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					_ = tracer.Shutdown(shutdownCtx)
				}()
			}

			return ctx.withLibrary(runCtx, func(reg *registry.Registry, lib *registry.Library) error {
				return ctx.withUsers(func(users *sharing.UserService, db *gorm.DB) error {
					sched, err := jobs.NewScheduler(reg, cfg.Jobs, metrics.Default())
					if err != nil {
						return err
					}
					srv, err := server.New(server.Options{
						Config:  cfg,
						Library: lib,
						DB:      db,
						Users:   users,
						Metrics: metrics.Default(),
						Logger:  logging.GetGlobalLogger(),
					})
					if err != nil {
						return err
					}

					if err := srv.Start(runCtx); err != nil {
						return err
					}
					sched.Start()
					fmt.Fprintf(cmd.OutOrStdout(), "Sharing %s on %s (Ctrl+C to stop)\n", lib.Root, srv.Addr())

					<-runCtx.Done()

					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := sched.Stop(shutdownCtx); err != nil {
						logging.WithModule("cli").Warn().Err(err).Msg("Jobs did not stop in time")
					}
					return srv.Stop(shutdownCtx)
				})
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}
