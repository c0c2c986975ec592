package messaging

import (
	"context"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const pubSubTestProject = "otpgate-test"

func newTestPubSub(t *testing.T, topic, group string) *PubSub {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	topicName := "projects/" + pubSubTestProject + "/topics/" + topic
	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	_, err = srv.GServer.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               "projects/" + pubSubTestProject + "/subscriptions/" + pubSubSubscription(topic, group),
		Topic:              topicName,
		AckDeadlineSeconds: 10,
	})
	require.NoError(t, err)

	p, err := NewPubSub(ctx, PubSubConfig{
		ProjectID: pubSubTestProject,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.Addr),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPubSub_PublishConsume(t *testing.T) {
	p := newTestPubSub(t, "otp_unauthorized_attempt", "alert")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- p.Consume(ctx, "otp_unauthorized_attempt", func(_ context.Context, msg Message) error {
			select {
			case got <- msg:
			default:
			}
			return nil
		}, WithGroup("alert"), WithAutoAck(true))
	}()

	res, err := p.Publish(context.Background(), "otp_unauthorized_attempt", OutgoingMessage{
		Body: []byte(`{"identity":"x@y.com"}`),
		Key:  []byte("x@y.com"),
		Headers: []Header{
			{Key: "cID", Value: []byte("cid-1")},
			{Key: "cID", Value: []byte("cid-2")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, "otp_unauthorized_attempt", res.Topic)

	select {
	case msg := <-got:
		assert.JSONEq(t, `{"identity":"x@y.com"}`, string(msg.Body()))
		assert.Equal(t, "otp_unauthorized_attempt", msg.Topic())
		assert.Equal(t, []byte("x@y.com"), msg.Key())
		assert.Equal(t, []Header{{Key: "cID", Value: []byte("cid-1")}}, msg.Headers())
		assert.False(t, msg.Timestamp().IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestPubSub_Validation(t *testing.T) {
	p := newTestPubSub(t, "otp_unauthorized_attempt", "alert")
	ctx := context.Background()
	noop := func(context.Context, Message) error { return nil }

	_, err := p.Publish(ctx, "", OutgoingMessage{})
	assert.ErrorIs(t, err, ErrTopicRequired)

	_, err = p.Publish(ctx, "otp_unauthorized_attempt", OutgoingMessage{Delay: time.Second})
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.ErrorIs(t, p.Consume(ctx, "otp_unauthorized_attempt", nil), ErrHandlerRequired)
	assert.ErrorIs(t, p.Consume(ctx, "otp_unauthorized_attempt", noop), ErrGroupRequired)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Publish(ctx, "otp_unauthorized_attempt", OutgoingMessage{})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.ErrorIs(t, p.Consume(ctx, "otp_unauthorized_attempt", noop, WithGroup("alert")), io.ErrClosedPipe)
}

func TestPubSubAttributes(t *testing.T) {
	attrs := pubSubAttributes(OutgoingMessage{
		Key: []byte("k"),
		Headers: []Header{
			{Key: "", Value: []byte("dropped")},
			{Key: pubSubKeyAttribute, Value: []byte("spoofed")},
			{Key: "a", Value: []byte("1")},
		},
	})
	assert.Equal(t, map[string]string{"a": "1", pubSubKeyAttribute: "k"}, attrs)
}
