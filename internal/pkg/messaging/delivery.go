package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// responder makes Ack/Nack idempotent for every driver.
type responder struct {
	responded atomic.Bool
}

func (r *responder) claim() bool        { return !r.responded.Swap(true) }
func (r *responder) hasResponded() bool { return r.responded.Load() }

type respondingMessage interface {
	Message
	hasResponded() bool
}

// deliver runs handler for one message, recovering panics, then applies auto-ack.
func deliver(ctx context.Context, kind string, handler Handler, msg respondingMessage, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error { return handler(ctx, msg) })
	if herr != nil {
		slog.WarnContext(ctx, "messaging handler failed", "kind", kind, "topic", msg.Topic(), "error", herr)
	}

	if !autoAck || msg.hasResponded() {
		return nil
	}
	if herr == nil {
		return msg.Ack(ctx)
	}
	return msg.Nack(ctx)
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}

// startWorkers drains in with n goroutines until it is closed.
func startWorkers[T any](n int, in <-chan T, work func(T)) *sync.WaitGroup {
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			for v := range in {
				work(v)
			}
		})
	}
	return &wg
}

func validateConsume(ctx context.Context, topic string, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}
