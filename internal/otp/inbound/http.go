package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) error
	Verify(ctx context.Context, in usecase.VerifyInput) error
	Health(ctx context.Context) *usecase.HealthOutput
}

func RegisterHTTPEndpoint(r *router.Router, cfg config.Config, uc uc) {
	end := &HTTPEndpoint{uc: uc, cfg: cfg}

	r.POST("/api/v1/otp/issue", end.Issue)
	r.POST("/api/v1/otp/verify", end.Verify)

	// Paths served by the first release of the login page.
	r.POST("/send-otp", end.Issue)
	r.POST("/verify-otp", end.Verify)

	r.GET("/health", end.Health)
}
