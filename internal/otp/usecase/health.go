package usecase

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency; a nil error means it is reachable.
type HealthCheck func(ctx context.Context) error

type HealthOutput struct {
	Healthy bool
	Checks  map[string]string
	Sweep   SweepStats
}

func (s *Usecase) Health(ctx context.Context) *HealthOutput {
	ctx, span := s.startSpan(ctx, "Health")
	defer span.End()

	out := &HealthOutput{
		Healthy: true,
		Checks:  make(map[string]string, len(s.checks)),
		Sweep:   s.SweepStats(),
	}

	for _, name := range slices.Sorted(maps.Keys(s.checks)) {
		cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := s.checks[name](cctx)
		cancel()

		if err != nil {
			slog.WarnContext(ctx, "health check failed", "check", name, "error", err)
			out.Healthy = false
			out.Checks[name] = "down"
			continue
		}
		out.Checks[name] = "up"
	}

	return out
}
