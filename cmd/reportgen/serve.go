package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/spf13/cobra"

	"github.com/FulgerX2007/itsm-report-generator/pkg/api"
	"github.com/FulgerX2007/itsm-report-generator/pkg/cron"
)

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var writeTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report endpoint and menu API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := rootOpts.load()
			if err != nil {
				return err
			}
			logger := log.DefaultLogger.With("component", "server")
			logger.Info("Starting report generator", "settings", settings.Redacted())

			svc, err := openServices(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			processors, elements := svc.describe()
			logger.Info("Registered report components", "processors", processors, "menu_elements", elements)

			housekeeping := cron.NewScheduler(settings.Housekeeping, svc.traces.Dir())
			if err := housekeeping.Start(); err != nil {
				return err
			}
			defer housekeeping.Stop()

			handler := api.NewHandler(settings, svc.app, svc.orchestrator, svc.registrar, svc.traces)
			handler.WriteTimeout = writeTimeout
			srv := &http.Server{
				Addr:              settings.Listen,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      writeTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening", "addr", settings.Listen, "pdf_backend", svc.pdf.Name(), "trace_log", svc.traces.Enabled())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&writeTimeout, "write-timeout", 60*time.Second, "response write timeout outside report rendering")
	return cmd
}
