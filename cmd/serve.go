package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/handscribe/internal/config"
	"github.com/lehigh-university-libraries/handscribe/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port string
	var previewDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web interface for scanning handwritten pages",
		Long: `Starts the Handscribe web interface on the specified port.

The web interface lets you upload page photos, reorder them, run the
batched extraction, and review the transcription before copying it out.`,
		Example: `  # Start server on default port 8888
  handscribe serve

  # Start server on custom port
  handscribe serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			provider, err := providerFor(settings)
			if err != nil {
				return err
			}

			// Settings are re-read per extraction so edits apply to the
			// next attempt, not the in-flight one.
			settingsFn := func() config.Settings {
				s, err := loadSettings()
				if err != nil {
					slog.Warn("Failed to reload settings, using previous values", "err", err)
					return settings
				}
				return s
			}

			handler, err := handlers.New(provider, settingsFn, previewDir)
			if err != nil {
				return err
			}

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc(handlers.PreviewURLPrefix+"/", handler.HandlePreview)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Handscribe interface available", "addr", addr, "url", "http://localhost"+addr)
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

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&previewDir, "preview-dir", "previews", "Directory for preview copies of queued pages")

	return cmd
}
