package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/alert/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const (
	subjectUnauthorized = "Unauthorized Login Attempt"

	defaultUnauthorizedBody = `An unauthorized login attempt was made with email: {{.identity}}. Here are the details:
Operation: {{.operation}}
IP Address: {{.address}}
MAC Address: {{.device_hint}}
User-Agent: {{.user_agent}}
Time of Attempt: {{.timestamp}}
`

	notAvailable = "not available"
)

type NotifyUnauthorizedAttemptInput struct {
	Attempt entity.Attempt
}

type attemptRules struct {
	Identity  string `validate:"required,max=320"`
	Operation string `validate:"required,oneof=issue verify"`
}

func (s *Usecase) NotifyUnauthorizedAttempt(ctx context.Context, in NotifyUnauthorizedAttemptInput) error {
	ctx, span := s.tracer.Start(ctx, "NotifyUnauthorizedAttempt")
	defer span.End()

	a := in.Attempt
	if err := s.validator.Validate(attemptRules{Identity: a.Identity, Operation: a.Operation}); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "event_id", a.EventID, "error", err)
		return nil
	}

	operators := s.cfg.GetArray("modules.alert.operator_emails")
	if len(operators) == 0 {
		slog.WarnContext(ctx, "no operator emails configured, unauthorized attempt not mailed", "event_id", a.EventID, "identity", a.Identity)
		return nil
	}

	occurred := a.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock.Now()
	}

	var body strings.Builder
	if err := s.body.Execute(&body, map[string]any{
		"identity":    a.Identity,
		"operation":   a.Operation,
		"address":     orNotAvailable(a.SourceAddress),
		"device_hint": orNotAvailable(a.DeviceHint),
		"user_agent":  orNotAvailable(a.ClientDescriptor),
		"timestamp":   occurred.UTC().Format(time.RFC3339),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to render unauthorized attempt body", "event_id", a.EventID, "error", err)
		return nil
	}

	if err := s.repoMail.NotifyOperators(ctx, operators, subjectUnauthorized, body.String()); err != nil {
		slog.ErrorContext(ctx, "failed to mail unauthorized attempt", "event_id", a.EventID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "operators notified of unauthorized attempt", "event_id", a.EventID, "identity", a.Identity, "operation", a.Operation)

	return nil
}

func orNotAvailable(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}
