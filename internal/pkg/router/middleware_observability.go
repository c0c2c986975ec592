package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxLoggedBody = 8 * 1024
	maskedValue   = "***"

	// routeUnmatched keeps unknown paths out of metric labels.
	routeUnmatched = "unmatched"

	attrOutcome = "otpgate.outcome"
)

// alwaysMasked are the request and header fields that carry a code or a
// credential. instrument.log_mask_fields adds to this list.
var alwaysMasked = []string{"otp", "code", "authorization", "cookie", "set-cookie"}

type masker map[string]struct{}

func newMasker(cfg config.Config) masker {
	m := masker{}
	for _, k := range alwaysMasked {
		m[k] = struct{}{}
	}
	if cfg != nil {
		for _, k := range cfg.GetArray("instrument.log_mask_fields") {
			m[strings.ToLower(k)] = struct{}{}
		}
	}
	return m
}

func (m masker) has(key string) bool {
	_, ok := m[strings.ToLower(key)]
	return ok
}

func (m masker) headers(h http.Header) http.Header {
	out := h.Clone()
	for k := range out {
		if m.has(k) {
			out.Set(k, maskedValue)
		}
	}
	return out
}

func (m masker) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if m.has(k) {
				out[k] = maskedValue
				continue
			}
			out[k] = m.value(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = m.value(child)
		}
		return out
	default:
		return v
	}
}

// body logs JSON with masked fields. Anything else is logged by size only,
// since a malformed verify body may still hold a code.
func (m masker) body(raw []byte, truncated bool) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if !truncated && json.Unmarshal(raw, &v) == nil {
		return m.value(v)
	}
	return fmt.Sprintf("<%d bytes, not logged>", len(raw))
}

func routeLabel(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return routeUnmatched
}

// envelopeStatus reads the "status" field of a JSON envelope, which carries
// the OTP outcome (Issued, Verified, Mismatch, ...).
func envelopeStatus(raw []byte) string {
	var env struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(raw, &env) != nil {
		return ""
	}
	return env.Status
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	bytes     int
	body      bytes.Buffer
	truncated bool
	err       error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	room := maxLoggedBody - w.body.Len()
	if len(p) > room {
		w.truncated = true
	}
	if room > 0 {
		w.body.Write(p[:min(len(p), room)])
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// SetError lets the router attach the handler error to the span.
func (w *statusRecorder) SetError(err error) {
	w.err = err
}

func readRequestBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	//nolint:errcheck // logging only; the handler sees the same bytes
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if len(head) > maxLoggedBody {
		return head[:maxLoggedBody], true
	}
	return head, false
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	mask := newMasker(cfg)
	tracer := ins.Tracer("http.server")
	meter := ins.Meter("http.server")

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests by route and OTP outcome"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r)

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			reqBody, reqTruncated := readRequestBody(r)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			outcome := envelopeStatus(rec.body.Bytes())
			elapsed := time.Since(start)

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
				attribute.String(attrOutcome, outcome),
			}
			span.SetAttributes(attrs...)
			if rec.err != nil {
				span.RecordError(rec.err)
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			if requests != nil {
				requests.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if duration != nil {
				duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"outcome", outcome,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"headers", mask.headers(r.Header),
				"request", mask.body(reqBody, reqTruncated),
				"response", mask.body(rec.body.Bytes(), rec.truncated),
			)
		})
	}
}
