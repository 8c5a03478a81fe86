package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/peakfit/internal/server"
	"github.com/cwbudde/peakfit/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveDataDir string
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP fit server",
	Long: `Starts the HTTP API: submit fits, poll status, stream progress via
SSE, and download curves and xlsx reports. Finished fits are persisted
as sessions unless --no-store is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Session store and data file directory")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Do not persist finished fits")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		sessions store.Store
		baseDir  string
	)
	if !serveNoStore {
		fsStore, err := store.NewFSStore(serveDataDir)
		if err != nil {
			return fmt.Errorf("failed to create session store: %w", err)
		}
		sessions = fsStore
		baseDir = fsStore.BaseDir()
	}

	srv := server.NewServer(serveAddr, sessions, baseDir, serveDataDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
