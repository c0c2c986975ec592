package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/alert/usecase"
)

type uc interface {
	NotifyUnauthorizedAttempt(ctx context.Context, in usecase.NotifyUnauthorizedAttemptInput) error
}
