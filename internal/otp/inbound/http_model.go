package inbound

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
)

// Code accepts a JSON string or number. Integral forms are normalized to
// bare digits: surrounding spaces, a leading "+" and an all-zero fraction are
// dropped, so "+583301", 583301.0 and " 583301 " all read as "583301".
// Leading zeros are kept. Any other text is passed on as sent and verifies
// as a mismatch.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(normalizeCode(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(normalizeCode(n.String()))
	return nil
}

func normalizeCode(s string) string {
	s = strings.TrimSpace(s)

	whole, frac, _ := strings.Cut(strings.TrimPrefix(s, "+"), ".")
	if !isDigits(whole) || strings.Trim(frac, "0") != "" {
		return s
	}
	return whole
}

func isDigits(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

type IssueRequest struct {
	Email    string `json:"email"`
	Identity string `json:"identity"`
}

func (r IssueRequest) identity() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Identity
}

type IssueResponse struct{}

func (IssueResponse) Status() string { return "Issued" }

func (IssueResponse) Message() string { return "OTP sent successfully" }

type VerifyRequest struct {
	Email    string `json:"email"`
	Identity string `json:"identity"`
	OTP      Code   `json:"otp"`
	Code     Code   `json:"code"`
}

func (r VerifyRequest) identity() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Identity
}

func (r VerifyRequest) code() string {
	if r.OTP != "" {
		return string(r.OTP)
	}
	return string(r.Code)
}

type VerifyResponse struct{}

func (VerifyResponse) Status() string { return "Verified" }

func (VerifyResponse) Message() string { return "OTP verified successfully" }

type HealthResponse struct {
	healthy bool
	Checks  map[string]string  `json:"checks"`
	Sweep   usecase.SweepStats `json:"sweep"`
}

func (h HealthResponse) Status() string {
	if h.healthy {
		return "Healthy"
	}
	return "Unhealthy"
}

func (h HealthResponse) Message() string {
	if h.healthy {
		return "all dependencies are reachable"
	}
	return "one or more dependencies are unreachable"
}

func (h HealthResponse) StatusCode() int {
	if h.healthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
