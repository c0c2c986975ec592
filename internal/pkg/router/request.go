package router

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const maxBodyBytes = 64 * 1024

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request
}

// ClientInfo describes where a request came from, as far as headers tell.
type ClientInfo struct {
	// Address is the proxy-aware client IP.
	Address string
	// DeviceHint is the value of the configured device header, if any.
	DeviceHint string
	// UserAgent is the raw User-Agent header.
	UserAgent string
}

// ClientInfo collects the caller's address, device hint and user agent.
//
// The address is RemoteAddr as rewritten by the real-IP middleware; a
// host:port form is reduced to its host. An empty deviceHeader skips the hint.
func (r *Request) ClientInfo(deviceHeader string) ClientInfo {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	info := ClientInfo{
		Address:   addr,
		UserAgent: r.UserAgent(),
	}
	if deviceHeader != "" {
		info.DeviceHint = strings.TrimSpace(r.Header.Get(deviceHeader))
	}

	return info
}

// DecodeBody decodes the JSON body into dst.
//
// Unknown fields are ignored; trailing data after the first JSON value is not.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return goerror.NewInvalidFormat()
	}

	return nil
}
