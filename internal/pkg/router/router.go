// Package router serves the JSON API on top of httprouter. Every response,
// including 404, 405, panics and maintenance, uses the same envelope.
package router

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

// Handler returns the payload to wrap in the success envelope, or an error.
type Handler func(r *Request) (any, error)

type Config struct {
	Config config.Config
	// UUID generates correlation IDs for requests that arrive without one.
	UUID       uid.StringID
	Instrument instrument.Instrumentation
	// Welcome is the message served on GET /.
	Welcome string
}

type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// errorSetter is implemented by the observability recorder so handler errors
// reach the request span.
type errorSetter interface{ SetError(error) }

// NewRouter builds the router with the middleware every endpoint shares,
// outermost first: client IP, correlation ID, tracing and logging, panic
// recovery and maintenance.
func NewRouter(cfg Config) *Router {
	hr := httprouter.New()
	hr.SaveMatchedRoutePath = true
	hr.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, envelope{Status: "NotFound", Message: "endpoint not found"}, http.StatusNotFound)
	})
	hr.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, envelope{Status: "MethodNotAllowed", Message: "method not allowed"}, http.StatusMethodNotAllowed)
	})

	welcome := cfg.Welcome
	if welcome == "" {
		welcome = "Welcome to OTPGate API"
	}
	hr.GET("/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, envelope{Status: "OK", Message: welcome}, http.StatusOK)
	})

	return &Router{
		hr: hr,
		mws: []Middleware{
			middlewareIP,
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Config, cfg.Instrument),
			middlewareRecover,
			middlewareMaintenance(cfg.Config),
		},
	}
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodGet, path, h, mws)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodPost, path, h, mws)
}

func (r *Router) handle(method, path string, h Handler, extra []Middleware) {
	endpoint := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			if es, ok := w.(errorSetter); ok {
				es.SetError(err)
			}
			writeError(w, err)
			return
		}
		writeResult(w, resp)
	})

	mws := append(append([]Middleware{}, r.mws...), extra...)
	r.hr.Handler(method, path, Chain(endpoint, mws...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
