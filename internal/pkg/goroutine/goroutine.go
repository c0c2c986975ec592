package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets no limit.
const DefaultMaxGoroutine int = 100

// Manager runs the service's background work: alert deliveries, broker
// consumers and the expiry sweeper. It bounds how many run at once and lets
// shutdown wait for all of them.
type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	mu     sync.Mutex // guards closed and errs
	closed bool
	errs   []error
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go starts f unless the manager is closed or full, and reports whether it
// did. Dropped work is logged, never queued. f does not run when ctx is
// already done by the time it is scheduled.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		slog.WarnContext(ctx, "background task dropped, shutting down")
		return false
	}
	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "background task dropped, limit reached", "limit", cap(g.sema))
		return false
	}

	g.wg.Add(1)
	go g.run(ctx, f)
	return true
}

func (g *Manager) run(ctx context.Context, f func(ctx context.Context) error) {
	defer g.wg.Done()
	defer func() { <-g.sema }()
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			var trace any = string(stack)
			if frames := stacktrace.InternalPaths(stack); len(frames) > 0 {
				trace = frames
			}
			slog.ErrorContext(ctx, "background task panicked", "panic", rvr, "stack", trace)
		}
	}()

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "background task skipped", "error", err)
		return
	}
	if err := f(ctx); err != nil {
		g.mu.Lock()
		g.errs = append(g.errs, err)
		g.mu.Unlock()
	}
}

// GoDetached runs f on a context that keeps the values of pCtx (correlation
// IDs, spans) but not its cancellation, bounded by timeout when positive.
//
// Use it for work that must outlive the request that triggered it.
func (g *Manager) GoDetached(pCtx context.Context, timeout time.Duration, f func(ctx context.Context) error) bool {
	return g.Go(context.WithoutCancel(pCtx), func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return f(ctx)
	})
}

// Every runs f on each tick of interval until ctx is done.
//
// Errors from f are logged and do not stop the loop.
func (g *Manager) Every(ctx context.Context, name string, interval time.Duration, f func(ctx context.Context) error) bool {
	if interval <= 0 {
		slog.WarnContext(ctx, "periodic job disabled, interval must be positive", "job", name)
		return false
	}

	return g.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.InfoContext(ctx, "periodic job started", "job", name, "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				slog.InfoContext(ctx, "periodic job stopped", "job", name)
				return nil
			case <-ticker.C:
				if err := f(ctx); err != nil {
					slog.ErrorContext(ctx, "periodic job failed", "job", name, "error", err)
				}
			}
		}
	})
}

// Wait closes the manager to new work, waits for what is running and
// returns the errors the tasks reported.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
