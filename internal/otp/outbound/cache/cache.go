package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix      = "{otp}:"
	sweepBatchSize = 500
)

// Cache is the Redis-backed OTP store.
type Cache struct {
	client redis.UniversalClient
	ins    instrument.Instrumentation
}

func NewCache(client redis.UniversalClient, ins instrument.Instrumentation) *Cache {
	return &Cache{client: client, ins: ins}
}

func (c *Cache) seqKey() string    { return keyPrefix + "seq" }
func (c *Cache) issuedKey() string { return keyPrefix + "issued" }

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return goerror.ErrNotFound
	}
	return err
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("otp.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Cache) CreateCode(ctx context.Context, in entity.NewOTP) (id int64, err error) {
	ctx, span := c.startSpan(ctx, "CreateCode")
	defer func() { c.endSpan(span, err) }()

	id, err = insertScript.Run(ctx, c.client,
		[]string{c.seqKey(), c.issuedKey()},
		in.Identity, in.Code, in.IssuedAt.UnixNano(), in.IssuedAt.UnixMilli(), keyPrefix,
	).Int64()
	if err != nil {
		err = c.mapError(err)
		return 0, err
	}

	return id, nil
}

func (c *Cache) GetLatestCode(ctx context.Context, identity string) (_ *entity.OTP, err error) {
	ctx, span := c.startSpan(ctx, "GetLatestCode")
	defer func() { c.endSpan(span, err) }()

	fields, err := latestScript.Run(ctx, c.client, []string{c.seqKey()}, identity, keyPrefix).StringSlice()
	if err != nil {
		err = c.mapError(err)
		return nil, err
	}

	rec, err := parseRecord(identity, fields)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (c *Cache) DeleteCode(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := c.startSpan(ctx, "DeleteCode")
	defer func() { c.endSpan(span, err) }()

	n, err := deleteScript.Run(ctx, c.client, []string{c.issuedKey()}, id, keyPrefix).Int64()
	if err != nil {
		err = c.mapError(err)
		return false, err
	}

	return n == 1, nil
}

func (c *Cache) DeleteCodesIssuedBefore(ctx context.Context, cutoff time.Time) (total int64, err error) {
	ctx, span := c.startSpan(ctx, "DeleteCodesIssuedBefore")
	defer func() { c.endSpan(span, err) }()

	for {
		n, err := sweepScript.Run(ctx, c.client, []string{c.issuedKey()}, cutoff.UnixMilli(), sweepBatchSize, keyPrefix).Int64()
		if err != nil {
			return total, c.mapError(err)
		}

		total += n
		if n < sweepBatchSize {
			return total, nil
		}
	}
}

func parseRecord(identity string, fields []string) (*entity.OTP, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("otp cache: malformed record, got %d fields", len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp cache: parse id: %w", err)
	}

	code, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp cache: parse code: %w", err)
	}

	nanos, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp cache: parse issued_at: %w", err)
	}

	return &entity.OTP{
		ID:       id,
		Identity: identity,
		Code:     code,
		IssuedAt: time.Unix(0, nanos).UTC(),
	}, nil
}
