package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	msg   messaging.OutgoingMessage
}

type recordingBroker struct {
	out []published
	err error
}

func (r *recordingBroker) Publish(_ context.Context, topic string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	if r.err != nil {
		return messaging.PublishResult{}, r.err
	}
	r.out = append(r.out, published{topic: topic, msg: msg})
	return messaging.PublishResult{Topic: topic}, nil
}

func (r *recordingBroker) Consume(context.Context, string, messaging.Handler, ...messaging.ConsumeOption) error {
	return messaging.ErrUnsupported
}

func (r *recordingBroker) Close() error { return nil }

func TestMessaging_AlertUnauthorized(t *testing.T) {
	broker := &recordingBroker{}
	sf, err := uid.NewSnowflakeNode(7)
	require.NoError(t, err)

	m := NewMessaging(broker, sf, instrument.NewNoop())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := instrument.SetCorrelationID(context.Background(), "cid-42")

	err = m.AlertUnauthorized(ctx, entity.UnauthorizedAttempt{
		Identity:  "stranger@example.com",
		Operation: entity.OperationVerify,
		RequestMetadata: entity.RequestMetadata{
			SourceAddress:    "203.0.113.7",
			DeviceHint:       "aa:bb:cc",
			ClientDescriptor: "curl/8",
			Timestamp:        at,
		},
	})
	require.NoError(t, err)

	require.Len(t, broker.out, 1)
	got := broker.out[0]
	assert.Equal(t, event.OTPUnauthorizedAttemptDestination, got.topic)
	assert.Equal(t, []byte("stranger@example.com"), got.msg.Key)

	cID, ok := messaging.HeaderValue(got.msg.Headers, "cID")
	assert.True(t, ok)
	assert.Equal(t, "cid-42", cID)

	var payload event.OTPUnauthorizedAttemptMessage
	require.NoError(t, json.Unmarshal(got.msg.Body, &payload))
	assert.Positive(t, payload.EventID)
	assert.Equal(t, "stranger@example.com", payload.Identity)
	assert.Equal(t, "verify", payload.Operation)
	assert.Equal(t, "203.0.113.7", payload.SourceAddress)
	assert.Equal(t, "aa:bb:cc", payload.DeviceHint)
	assert.Equal(t, "curl/8", payload.ClientDescriptor)
	assert.True(t, at.Equal(payload.OccurredAt))
}

func TestMessaging_AlertUnauthorizedPublishError(t *testing.T) {
	boom := errors.New("broker down")
	sf, err := uid.NewSnowflakeNode(1)
	require.NoError(t, err)

	m := NewMessaging(&recordingBroker{err: boom}, sf, instrument.NewNoop())
	assert.ErrorIs(t, m.AlertUnauthorized(context.Background(), entity.UnauthorizedAttempt{Identity: "x@example.com"}), boom)
}
