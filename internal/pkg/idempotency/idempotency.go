// Package idempotency lets replicas share periodic work. A keyed run happens
// on one replica at a time and its outcome is remembered for a while, so the
// other replicas skip that tick.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("idempotency: run in progress on another replica")
	ErrAlreadyCompleted  = errors.New("idempotency: run already completed")
	ErrAlreadyFailed     = errors.New("idempotency: run recently failed")
	ErrInvalidState      = errors.New("idempotency: unknown state")
)

const (
	keyPrefix = "otpgate:once:"

	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"

	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
)

// Idempotency runs fn at most once per key across replicas.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long a crashed run blocks the key.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a finished run's outcome makes others skip.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// Tracker keeps run state in Redis.
type Tracker struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Tracker {
	return &Tracker{client: client}
}

// Exec claims key, runs fn and records its outcome. When fn stops because ctx
// was cancelled the claim is dropped instead, so another replica can take the
// next tick right away.
func (t *Tracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}

	key = keyPrefix + key
	if err := t.claim(ctx, key, o.lockDuration); err != nil {
		return err
	}

	runErr := fn(ctx)
	switch {
	case runErr == nil:
		return t.client.Set(ctx, key, stateCompleted, o.stateTTL).Err()
	case ctx.Err() != nil:
		// ctx is done, so the cleanup gets its own short deadline.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		return errors.Join(runErr, t.client.Del(cctx, key).Err())
	default:
		return errors.Join(runErr, t.client.Set(ctx, key, stateFailed, o.stateTTL).Err())
	}
}

func (t *Tracker) claim(ctx context.Context, key string, lock time.Duration) error {
	// The second attempt covers a key that expired between SETNX and GET.
	for range 2 {
		ok, err := t.client.SetNX(ctx, key, stateRunning, lock).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		state, err := t.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		switch state {
		case stateRunning:
			return ErrAlreadyInProgress
		case stateCompleted:
			return ErrAlreadyCompleted
		case stateFailed:
			return ErrAlreadyFailed
		default:
			return ErrInvalidState
		}
	}
	return ErrInvalidState
}
