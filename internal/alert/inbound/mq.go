package inbound

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const defaultConsumerConcurrency = 4

type consumerDef struct {
	name    string
	topic   string // destination where publisher sent message
	group   string // kafka group, nsq channel, nats queue group
	handler messaging.Handler
}

// RegisterMQConsumer starts one goroutine per enabled consumer. A consumer is
// enabled when its name appears in modules.alert.consumer_names.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) int {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.alert.consumer_names")
	concurrency := config.IntOr(cfg, "modules.alert.consumer_concurrency", defaultConsumerConcurrency)

	consumers := []consumerDef{
		{
			name:    event.OTPUnauthorizedAttemptConsumerAlert,
			topic:   event.OTPUnauthorizedAttemptDestination,
			group:   event.OTPUnauthorizedAttemptConsumerAlert,
			handler: mqHandler.UnauthorizedAttempt,
		},
	}

	started := 0
	for _, consumer := range lo.Filter(consumers, func(c consumerDef, _ int) bool {
		return lo.Contains(enabled, c.name)
	}) {
		ok := routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
			return messenger.Consume(pCtx,
				consumer.topic,
				consumer.handler,
				messaging.WithGroup(consumer.group),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
			)
		})
		if ok {
			started++
		}
	}

	return started
}
