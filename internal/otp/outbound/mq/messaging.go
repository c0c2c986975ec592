package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	uid    uid.NumberID
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, uid uid.NumberID, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, uid: uid, ins: ins}
}

func (m *Messaging) AlertUnauthorized(ctx context.Context, attempt entity.UnauthorizedAttempt) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, "AlertUnauthorized")
	defer span.End()

	body, err := json.Marshal(event.OTPUnauthorizedAttemptMessage{
		EventID:          m.uid.Generate(),
		Identity:         attempt.Identity,
		Operation:        attempt.Operation.String(),
		SourceAddress:    attempt.SourceAddress,
		DeviceHint:       attempt.DeviceHint,
		ClientDescriptor: attempt.ClientDescriptor,
		OccurredAt:       attempt.Timestamp,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPUnauthorizedAttemptDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(attempt.Identity),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
