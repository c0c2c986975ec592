package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

const defaultShutdownTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func(context.Context) error
}

func closeFunc(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

// Run serves HTTP until ctx is done or the listener fails, then shuts the
// service down within app.shutdown_timeout_seconds.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)
		serveErr <- a.httpServer.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	timeout := config.SecondsOr(a.config, "app.shutdown_timeout_seconds", defaultShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return errors.Join(err, a.shutdown(sctx))
}

// shutdown stops accepting requests, cancels the consumers and the sweeper,
// waits for them, then releases resources in order. Telemetry is flushed
// last so the shutdown itself is logged and traced.
func (a *App) shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "http server shutdown", "error", err)
		errs = append(errs, err)
	}

	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background task ended with error", "error", err)
	}

	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to release resource", "name", c.name, "error", err)
			errs = append(errs, err)
		}
	}

	slog.InfoContext(ctx, "otpgate stopped")
	return errors.Join(errs...)
}
