package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/docscan/internal/config"
	"github.com/lehigh-university-libraries/docscan/internal/handlers"
	"github.com/lehigh-university-libraries/docscan/internal/handoff"
)

func newServeCmd() *cobra.Command {
	var port string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture session API",
		Long: `Starts the docscan HTTP API on the specified port.

Clients create a capture session, upload page images (multipart or by URL), review
the enhanced previews, remove or reset pages and finally finalize the session. Finalized
sessions are written to the output directory together with a manifest.yaml.`,
		Example: `  # Start server on default port 8888
  docscan serve

  # Start server on custom port, delivering into /srv/scans
  docscan serve --port 3000 --output-dir /srv/scans`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.OutputDir = outputDir
			}

			handler := handlers.New(cfg, handoff.NewDirectorySink(cfg.OutputDir))

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Docscan API available", "addr", addr, "url", "http://localhost"+addr, "output_dir", cfg.OutputDir, "workers", cfg.EnhanceWorkers)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (overrides PORT)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./finalized", "Directory finalized sessions are delivered to (overrides OUTPUT_DIR)")

	return cmd
}
