package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/controller"
)

func serveCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.WebhookSecret == "" {
				a.logger.Warn("WEBHOOK_SECRET not set, every webhook will be rejected")
			}

			transactionController := controller.NewTransactionController(a.service, a.webhooks, a.cfg.WebpayReturnURL, a.logger)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.RealIP)
			r.Use(middleware.Recoverer)
			transactionController.Routes(r)

			server := &http.Server{
				Addr:         ":" + strconv.Itoa(a.cfg.Port),
				Handler:      r,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			if !noSweep && a.cfg.SweepInterval > 0 {
				go a.service.RunSweeper(ctx, a.cfg.SweepInterval)
			}

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("server running", zap.Int("port", a.cfg.Port), zap.String("env", a.cfg.Env))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case err := <-serverErr:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			a.logger.Info("shutting down server")

			// Give outstanding requests 30 seconds to complete
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.logger.Info("server exited")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the background expiry sweeper")
	return cmd
}
