package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ============================================================================
// HTTP Server
// ============================================================================
// Routes:
//   GET /ws/state  state websocket (state_init + live broadcasts)
//   GET /state     one JSON snapshot
//   GET /healthz   liveness
// ============================================================================

// newHTTPHandler builds the daemon's HTTP routes.
func newHTTPHandler(ws *Server, events chan<- Event, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/state", ws.handleStateWS)

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		snap, err := requestSnapshot(r.Context(), events)
		if err != nil {
			logger.Warn("state snapshot failed", "error", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toWireSnapshot(snap)); err != nil {
			logger.Debug("state response write failed", "error", err)
		}
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	return mux
}

// runHTTPServer serves handler on listen and shuts it down gracefully when
// ctx is canceled.
func runHTTPServer(ctx context.Context, listen string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server listening", "addr", listen)
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
