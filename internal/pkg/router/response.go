package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// envelope is the body of every JSON response. Status names the outcome
// (Issued, Verified, Mismatch, ...) so clients can branch on it directly.
type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Error   map[string]string `json:"error,omitempty"`
}

var internalError = envelope{Status: "InternalError", Message: "Internal server error"}

// Handler results may implement any of these to shape the envelope.
type (
	statusNamer interface{ Status() string }
	messenger   interface{ Message() string }
	statusCoder interface{ StatusCode() int }
)

func writeResult(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	env := envelope{Status: "OK", Message: "request has been successfully", Data: resp}
	if s, ok := resp.(statusNamer); ok {
		env.Status = s.Status()
	}
	if m, ok := resp.(messenger); ok {
		env.Message = m.Message()
	}
	writeJSON(w, env, code)
}

// writeError renders goerror values with their own status and message.
// Anything else is an InternalError whose detail stays in the logs.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, internalError, http.StatusInternalServerError)
		return
	}

	env := envelope{Status: gerr.Status(), Message: gerr.Msg()}
	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		env.Error = verr.Values()
	} else if fields := gerr.Fields(); len(fields) > 0 {
		env.Error = fields
	}
	writeJSON(w, env, gerr.StatusCode())
}

func writeJSON(w http.ResponseWriter, env envelope, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", "status", env.Status, "error", err)
	}
}
