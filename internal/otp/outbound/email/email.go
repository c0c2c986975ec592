package email

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/codes"
)

const subjectCode = "Your OTP Code"

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

func (m *Mail) DeliverCode(ctx context.Context, identity string, code int64, validFor time.Duration) error {
	ctx, span := m.ins.Tracer("otp.outbound.email").Start(ctx, "DeliverCode")
	defer span.End()

	if err := m.client.Send(ctx, mail.Message{
		To:      []string{identity},
		Subject: subjectCode,
		Body:    codeText(code, validFor),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func codeText(code int64, validFor time.Duration) string {
	minutes := max(int(math.Ceil(validFor.Minutes())), 1)
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Your OTP code is %d. It is valid for %d %s.", code, minutes, unit)
}
