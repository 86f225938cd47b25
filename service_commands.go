// anytrack/service_commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anytrack/api"
	"anytrack/shell"

	"github.com/spf13/cobra"
)

func newShellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Fill in the form interactively and submit from a prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			logger := newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, false)
			ctrl := a.newController(logger, "")
			defer ctrl.Close()

			return shell.New(ctrl, cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose one session over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Port
			}
			logger := newLogger(os.Stderr, a.cfg.LogLevel, true)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl := a.newController(logger, "")
			defer ctrl.Close()

			srv := &http.Server{
				Addr:    ":" + port,
				Handler: api.SetupRouter(ctx, ctrl, a.cfg, logger),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "port", port, "service", a.cfg.APIURL)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("listen: %w", err)
			case <-ctx.Done():
			}

			stop()
			logger.Info("shutting down gracefully, press Ctrl+C again to force")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server exiting")
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default from config)")
	return cmd
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the conversion service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, false)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			hs, err := a.newClient(logger).Health(ctx)
			if err != nil {
				return fmt.Errorf("service %s unreachable: %w", a.cfg.APIURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (version %s)\n", a.cfg.APIURL, hs.Status, hs.Version)
			return nil
		},
	}
}
