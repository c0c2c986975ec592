package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

const defaultDeviceHintHeader = "X-Mac-Address"

// HTTPEndpoint exposes HTTP handlers for issuing and verifying codes.
type HTTPEndpoint struct {
	uc  uc
	cfg config.Config
}

func (h *HTTPEndpoint) metadata(r *router.Request) entity.RequestMetadata {
	header := h.cfg.GetString("modules.otp.device_hint_header")
	if header == "" {
		header = defaultDeviceHintHeader
	}

	info := r.ClientInfo(header)
	return entity.RequestMetadata{
		SourceAddress:    info.Address,
		DeviceHint:       info.DeviceHint,
		ClientDescriptor: info.UserAgent,
	}
}

// Issue sends a fresh code to an allow-listed identity.
func (h *HTTPEndpoint) Issue(r *router.Request) (any, error) {
	var req IssueRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Issue(r.Context(), usecase.IssueInput{
		Identity: req.identity(),
		Metadata: h.metadata(r),
	}); err != nil {
		return nil, err
	}

	return IssueResponse{}, nil
}

// Verify checks a code against the latest one issued to the identity.
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Identity: req.identity(),
		Code:     req.code(),
		Metadata: h.metadata(r),
	}); err != nil {
		return nil, err
	}

	return VerifyResponse{}, nil
}

func (h *HTTPEndpoint) Health(r *router.Request) (any, error) {
	out := h.uc.Health(r.Context())

	return HealthResponse{
		healthy: out.Healthy,
		Checks:  out.Checks,
		Sweep:   out.Sweep,
	}, nil
}
