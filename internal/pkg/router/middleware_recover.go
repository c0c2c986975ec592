package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// middlewareRecover answers a handler panic with an InternalError envelope.
// It sits inside the observability middleware, so the panic is traced and
// logged as a 500 like any other failure.
func middlewareRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint // net/http compares the sentinel directly
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			var trace any = string(stack)
			if frames := stacktrace.InternalPaths(stack); len(frames) > 0 {
				trace = frames
			}
			slog.ErrorContext(r.Context(), "handler panicked", "panic", rvr, "stack", trace)

			if es, ok := w.(errorSetter); ok {
				es.SetError(fmt.Errorf("panic: %v", rvr))
			}
			writeJSON(w, internalError, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
