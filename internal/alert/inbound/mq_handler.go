package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/alert/entity"
	"github.com/shandysiswandi/otpgate/internal/alert/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

// ensureCorrelationID carries the publisher's correlation ID when the broker
// kept headers (NSQ does not) and mints a new one otherwise.
func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	if cID, ok := messaging.HeaderValue(headers, keyOfCorrelationID); ok && cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) UnauthorizedAttempt(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("alert.inbound.mq").Start(ctx, "UnauthorizedAttempt")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: otp unauthorized attempt", "msg_body", string(body))

	var payload event.OTPUnauthorizedAttemptMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp unauthorized attempt", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.NotifyUnauthorizedAttempt(ctx, usecase.NotifyUnauthorizedAttemptInput{
		Attempt: entity.Attempt{
			EventID:          payload.EventID,
			Identity:         payload.Identity,
			Operation:        payload.Operation,
			SourceAddress:    payload.SourceAddress,
			DeviceHint:       payload.DeviceHint,
			ClientDescriptor: payload.ClientDescriptor,
			OccurredAt:       payload.OccurredAt,
		},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to notify otp unauthorized attempt", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}
