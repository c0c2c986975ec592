package email

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

// NotifyOperators sends one plain-text message addressed to every distinct
// operator.
func (m *Mail) NotifyOperators(ctx context.Context, operators []string, subject, body string) error {
	ctx, span := m.ins.Tracer("alert.outbound.email").Start(ctx, "NotifyOperators")
	defer span.End()

	to := lo.Uniq(lo.Compact(lo.Map(operators, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	span.SetAttributes(attribute.Int("alert.recipients", len(to)))

	if err := m.client.Send(ctx, mail.Message{
		To:      to,
		Subject: subject,
		Body:    body,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
