package router

import (
	"net/http"
	"strconv"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// middlewareMaintenance answers 503 on the route patterns listed in
// app.maintenance.routes, e.g. /api/v1/otp/issue/:channel, and leaves the
// rest of the API up.
func middlewareMaintenance(cfg config.Config) Middleware {
	routes := map[string]struct{}{}
	var retryAfter string
	if cfg != nil {
		for _, route := range cfg.GetArray("app.maintenance.routes") {
			routes[route] = struct{}{}
		}
		if d := cfg.GetSecond("app.maintenance.retry_after_seconds"); d > 0 {
			retryAfter = strconv.Itoa(int(d.Seconds()))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(routes) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, down := routes[routeLabel(r)]; !down {
				next.ServeHTTP(w, r)
				return
			}
			if retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			writeJSON(w, envelope{Status: "Maintenance", Message: "service is under maintenance"}, http.StatusServiceUnavailable)
		})
	}
}
