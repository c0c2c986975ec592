package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
)

// SweepExpired removes codes older than the retention period and returns how
// many were deleted.
func (s *Usecase) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer span.End()

	cutoff := s.clock.Now().Add(-s.sweepRetention())

	n, err := s.repoStore.DeleteCodesIssuedBefore(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete stale otp codes", "cutoff", cutoff, "error", err)
		return 0, goerror.NewServer(err)
	}

	if n > 0 {
		slog.InfoContext(ctx, "stale otp codes swept", "deleted", n, "cutoff", cutoff)
	}

	return n, nil
}

// RunSweep is one tick of the background sweeper. Replicas share a lock so
// only one of them sweeps per interval.
func (s *Usecase) RunSweep(ctx context.Context) error {
	var deleted int64
	sweep := func(ctx context.Context) error {
		n, err := s.SweepExpired(ctx)
		deleted = n
		return err
	}

	var err error
	if s.idemp == nil {
		err = sweep(ctx)
	} else {
		interval := s.SweepInterval()
		err = s.idemp.Exec(ctx, sweepLockKey, sweep,
			idempotency.WithLockDuration(interval),
			idempotency.WithStateTTL(interval/2),
		)
	}

	switch {
	case errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyCompleted),
		errors.Is(err, idempotency.ErrAlreadyFailed):
		s.sweepSkipped.Inc()
		return nil
	case err != nil:
		s.sweepFailed.Inc()
		return err
	}

	s.sweepRuns.Inc()
	s.sweepDeleted.Add(deleted)

	return nil
}
