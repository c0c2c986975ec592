package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type okResp struct{}

func (okResp) Status() string  { return "Issued" }
func (okResp) Message() string { return "OTP sent successfully" }

func newTestRouter(t *testing.T, yaml string) *Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	return NewRouter(Config{
		Config:     cfg,
		UUID:       fixedID("generated-cid"),
		Instrument: instrument.NewNoop(),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRouter_Welcome(t *testing.T) {
	r := newTestRouter(t, "app: {}")

	rec, body := do(t, r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "Welcome to OTPGate API", body["message"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t, "app: {}")
	r.POST("/things", func(*Request) (any, error) { return okResp{}, nil })

	rec, body := do(t, r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", body["status"])

	rec, _ = do(t, r, http.MethodGet, "/things", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_SuccessEnvelope(t *testing.T) {
	r := newTestRouter(t, "app: {}")
	r.POST("/issue", func(*Request) (any, error) { return okResp{}, nil })

	rec, body := do(t, r, http.MethodPost, "/issue", `{}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Issued", body["status"])
	assert.Equal(t, "OTP sent successfully", body["message"])
	assert.Equal(t, map[string]any{}, body["data"])
	assert.Equal(t, "generated-cid", rec.Header().Get(HeaderCorrelationID))
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	r := newTestRouter(t, "app: {}")
	r.POST("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("OTP has expired", goerror.CodeBadRequest, goerror.WithStatus("Expired"))
	})
	r.POST("/fields", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(nil, "email", "email is required")
	})
	r.POST("/plain", func(*Request) (any, error) { return nil, errors.New("boom") })
	r.POST("/panic", func(*Request) (any, error) { panic("kaboom") })

	rec, body := do(t, r, http.MethodPost, "/business", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Expired", body["status"])
	assert.Equal(t, "OTP has expired", body["message"])
	assert.NotContains(t, body, "error")

	rec, body = do(t, r, http.MethodPost, "/fields", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", body["status"])
	assert.Equal(t, map[string]any{"email": "email is required"}, body["error"])

	rec, body = do(t, r, http.MethodPost, "/plain", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalError", body["status"])

	rec, body = do(t, r, http.MethodPost, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalError", body["status"])
}

func TestRouter_Maintenance(t *testing.T) {
	r := newTestRouter(t, "app:\n  maintenance:\n    routes: /issue/:channel\n    retry_after_seconds: 120\n")
	r.POST("/issue/:channel", func(*Request) (any, error) { return okResp{}, nil })
	r.POST("/verify/:channel", func(*Request) (any, error) { return okResp{}, nil })

	rec, body := do(t, r, http.MethodPost, "/issue/email", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Maintenance", body["status"])
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))

	rec, body = do(t, r, http.MethodPost, "/verify/email", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Issued", body["status"])
}

func TestRouter_PanicIsLoggedAsServerError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := newTestRouter(t, "app: {}")
	r.POST("/panic", func(*Request) (any, error) { panic("kaboom") })

	rec, body := do(t, r, http.MethodPost, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalError", body["status"])

	var sawPanic, sawRequest bool
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		switch line["msg"] {
		case "handler panicked":
			sawPanic = true
			assert.Equal(t, "kaboom", line["panic"])
		case "http request":
			sawRequest = true
			assert.Equal(t, "ERROR", line["level"])
			assert.EqualValues(t, http.StatusInternalServerError, line["status"])
			assert.Equal(t, "InternalError", line["outcome"])
		}
	}
	assert.True(t, sawPanic)
	assert.True(t, sawRequest)
}

func TestRouter_CorrelationIDFromHeader(t *testing.T) {
	r := newTestRouter(t, "app: {}")
	r.POST("/issue", func(*Request) (any, error) { return okResp{}, nil })

	rec, _ := do(t, r, http.MethodPost, "/issue", "", map[string]string{HeaderRequestID: " upstream-id "})
	assert.Equal(t, "upstream-id", rec.Header().Get(HeaderCorrelationID))
}

func TestRequest_ClientInfo(t *testing.T) {
	r := newTestRouter(t, "app: {}")

	var got ClientInfo
	r.POST("/meta", func(req *Request) (any, error) {
		got = req.ClientInfo("X-Mac-Address")
		return okResp{}, nil
	})

	do(t, r, http.MethodPost, "/meta", "", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
		"X-Mac-Address":   " aa:bb:cc:dd:ee:ff ",
		"User-Agent":      "curl/8.0",
	})

	assert.Equal(t, ClientInfo{Address: "203.0.113.7", DeviceHint: "aa:bb:cc:dd:ee:ff", UserAgent: "curl/8.0"}, got)
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "true client ip wins", headers: map[string]string{"True-Client-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2"}, remote: "9.9.9.9:1", want: "1.1.1.1"},
		{name: "x-real-ip", headers: map[string]string{"X-Real-IP": "2.2.2.2"}, remote: "9.9.9.9:1", want: "2.2.2.2"},
		{name: "first forwarded", headers: map[string]string{"X-Forwarded-For": "3.3.3.3,4.4.4.4"}, remote: "9.9.9.9:1", want: "3.3.3.3"},
		{name: "garbage header falls back", headers: map[string]string{"X-Real-IP": "not-an-ip"}, remote: "9.9.9.9:1", want: "9.9.9.9"},
		{name: "garbage header skipped for next", headers: map[string]string{"X-Real-IP": "not-an-ip", "X-Forwarded-For": " 5.5.5.5 , 6.6.6.6"}, remote: "9.9.9.9:1", want: "5.5.5.5"},
		{name: "ipv4 mapped", headers: map[string]string{"X-Real-IP": "::ffff:7.7.7.7"}, remote: "9.9.9.9:1", want: "7.7.7.7"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "nothing usable", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, realIP(req))
		})
	}
}

func TestDecodeBody(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	req := &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","extra":1}`))}
	require.NoError(t, req.DecodeBody(&dst))
	assert.Equal(t, "a@x.com", dst.Email)

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":1}`))}
	assert.Error(t, req.DecodeBody(&dst))

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{} {}`))}
	assert.Error(t, req.DecodeBody(&dst))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestIncomingCID(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "correlation header", headers: map[string]string{HeaderCorrelationID: "abc-123"}, want: "abc-123"},
		{name: "request id fallback", headers: map[string]string{HeaderRequestID: " req-9 "}, want: "req-9"},
		{name: "invalid correlation uses request id", headers: map[string]string{HeaderCorrelationID: "has space", HeaderRequestID: "req-9"}, want: "req-9"},
		{name: "control byte", headers: map[string]string{HeaderCorrelationID: "a\x01b"}, want: ""},
		{name: "too long", headers: map[string]string{HeaderCorrelationID: strings.Repeat("a", maxCIDLen+1)}, want: ""},
		{name: "none", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, incomingCID(h))
		})
	}
}

func TestRouter_CorrelationIDGeneratedForInvalidHeader(t *testing.T) {
	r := newTestRouter(t, "app: {}")
	r.POST("/issue", func(*Request) (any, error) { return okResp{}, nil })

	rec, _ := do(t, r, http.MethodPost, "/issue", "", map[string]string{HeaderCorrelationID: strings.Repeat("x", maxCIDLen+1)})
	assert.Equal(t, "generated-cid", rec.Header().Get(HeaderCorrelationID))
}

func TestMasker(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("instrument:\n  log_mask_fields: [Password]\n"))
	require.NoError(t, err)
	m := newMasker(cfg)

	got := m.body([]byte(`{"email":"a@x.com","otp":"123456","items":[{"Code":7}],"password":"p"}`), false)
	assert.Equal(t, map[string]any{
		"email":    "a@x.com",
		"otp":      maskedValue,
		"items":    []any{map[string]any{"Code": maskedValue}},
		"password": maskedValue,
	}, got)

	assert.Equal(t, "<11 bytes, not logged>", m.body([]byte(`otp=123456&`), false))
	assert.Equal(t, "<8 bytes, not logged>", m.body([]byte(`{"otp":1`), true))
	assert.Nil(t, m.body(nil, false))

	h := m.headers(http.Header{"Authorization": {"Bearer t"}, "User-Agent": {"curl"}})
	assert.Equal(t, maskedValue, h.Get("Authorization"))
	assert.Equal(t, "curl", h.Get("User-Agent"))
}

func TestRouter_ObservabilityLogMasksCodeAndLabelsRoute(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := newTestRouter(t, "app: {}")
	r.POST("/api/v1/otp/verify/:channel", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Invalid OTP", goerror.CodeBadRequest, goerror.WithStatus("Mismatch"))
	})

	rec, _ := do(t, r, http.MethodPost, "/api/v1/otp/verify/email", `{"email":"user@example.com","otp":"583301"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	type logLine struct {
		Msg     string         `json:"msg"`
		Route   string         `json:"route"`
		Status  int            `json:"status"`
		Outcome string         `json:"outcome"`
		Request map[string]any `json:"request"`
	}
	var line logLine
	dec := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	for line.Msg != "http request" {
		line = logLine{}
		require.NoError(t, dec.Decode(&line))
	}
	assert.Equal(t, "/api/v1/otp/verify/:channel", line.Route)
	assert.Equal(t, http.StatusBadRequest, line.Status)
	assert.Equal(t, "Mismatch", line.Outcome)
	assert.Equal(t, maskedValue, line.Request["otp"])
	assert.NotContains(t, buf.String(), "583301")
}
