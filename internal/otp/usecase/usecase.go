package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/allowlist"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

const (
	defaultValidity       = 5 * time.Minute
	defaultAlertTimeout   = 10 * time.Second
	defaultSweepInterval  = time.Minute
	defaultSweepRetention = time.Hour

	sweepLockKey = "otp:sweep"
)

type repoStore interface {
	CreateCode(ctx context.Context, in entity.NewOTP) (int64, error)
	GetLatestCode(ctx context.Context, identity string) (*entity.OTP, error)
	DeleteCode(ctx context.Context, id int64) (bool, error)
	DeleteCodesIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repoEmail interface {
	DeliverCode(ctx context.Context, identity string, code int64, validFor time.Duration) error
}

type repoAlert interface {
	AlertUnauthorized(ctx context.Context, attempt entity.UnauthorizedAttempt) error
}

// SweepStats is a snapshot of the background sweeper counters.
type SweepStats struct {
	Runs    int64 `json:"runs"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
	Deleted int64 `json:"deleted"`
}

type Usecase struct {
	repoStore repoStore
	repoEmail repoEmail
	repoAlert repoAlert
	allowlist allowlist.Checker
	generator otp.Generator
	idemp     idempotency.Idempotency
	validator validator.Validator
	cfg       config.Config
	clock     clock.Clocker
	goroutine *goroutine.Manager
	ins       instrument.Instrumentation
	checks    map[string]HealthCheck

	issueOutcomes  metric.Int64Counter
	verifyOutcomes metric.Int64Counter

	sweepRuns    *atomic.Int64
	sweepSkipped *atomic.Int64
	sweepFailed  *atomic.Int64
	sweepDeleted *atomic.Int64
}

type Dependency struct {
	RepoStore   repoStore
	RepoEmail   repoEmail
	RepoAlert   repoAlert
	Allowlist   allowlist.Checker
	Generator   otp.Generator
	Idempotency idempotency.Idempotency
	Validator   validator.Validator
	Config      config.Config
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Instrument  instrument.Instrumentation
	// HealthChecks are pinged by Health, keyed by the name reported back.
	HealthChecks map[string]HealthCheck
}

func New(dep Dependency) *Usecase {
	meter := dep.Instrument.Meter("otp.usecase")

	issueOutcomes, err := meter.Int64Counter("otp.issue.outcomes", metric.WithDescription("Issue results by outcome"))
	if err != nil {
		slog.Error("failed to create otp issue counter", "error", err)
	}

	verifyOutcomes, err := meter.Int64Counter("otp.verify.outcomes", metric.WithDescription("Verify results by outcome"))
	if err != nil {
		slog.Error("failed to create otp verify counter", "error", err)
	}

	return &Usecase{
		repoStore:      dep.RepoStore,
		repoEmail:      dep.RepoEmail,
		repoAlert:      dep.RepoAlert,
		allowlist:      dep.Allowlist,
		generator:      dep.Generator,
		idemp:          dep.Idempotency,
		validator:      dep.Validator,
		cfg:            dep.Config,
		clock:          dep.Clock,
		goroutine:      dep.Goroutine,
		ins:            dep.Instrument,
		checks:         dep.HealthChecks,
		issueOutcomes:  issueOutcomes,
		verifyOutcomes: verifyOutcomes,
		sweepRuns:      atomic.NewInt64(0),
		sweepSkipped:   atomic.NewInt64(0),
		sweepFailed:    atomic.NewInt64(0),
		sweepDeleted:   atomic.NewInt64(0),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

// Validity is the window during which an issued code can be verified.
func (s *Usecase) Validity() time.Duration {
	return config.SecondsOr(s.cfg, "modules.otp.validity_seconds", defaultValidity)
}

func (s *Usecase) alertTimeout() time.Duration {
	return config.SecondsOr(s.cfg, "modules.otp.alert_timeout_seconds", defaultAlertTimeout)
}

// SweepInterval is how often the background sweeper ticks.
func (s *Usecase) SweepInterval() time.Duration {
	return config.SecondsOr(s.cfg, "modules.otp.sweep.interval_seconds", defaultSweepInterval)
}

// sweepRetention never drops below the validity window so that Verify can
// still report Expired for a code that just ran out.
func (s *Usecase) sweepRetention() time.Duration {
	retention := config.SecondsOr(s.cfg, "modules.otp.sweep.retention_seconds", defaultSweepRetention)
	return max(retention, s.Validity())
}

// SweepStats returns the sweeper counters.
func (s *Usecase) SweepStats() SweepStats {
	return SweepStats{
		Runs:    s.sweepRuns.Load(),
		Skipped: s.sweepSkipped.Load(),
		Failed:  s.sweepFailed.Load(),
		Deleted: s.sweepDeleted.Load(),
	}
}

// alertUnauthorized stamps the attempt and hands it to the goroutine manager.
// The caller never waits on it and never sees its error.
func (s *Usecase) alertUnauthorized(ctx context.Context, identity string, op entity.Operation, md entity.RequestMetadata) {
	md.Timestamp = s.clock.Now()
	attempt := entity.UnauthorizedAttempt{
		Identity:        identity,
		Operation:       op,
		RequestMetadata: md,
	}

	scheduled := s.goroutine.GoDetached(ctx, s.alertTimeout(), func(ctx context.Context) error {
		if err := s.repoAlert.AlertUnauthorized(ctx, attempt); err != nil {
			slog.ErrorContext(ctx, "failed to alert unauthorized attempt", "identity", identity, "operation", op.String(), "error", err)
		}
		return nil
	})
	if !scheduled {
		slog.WarnContext(ctx, "unauthorized attempt alert dropped", "identity", identity, "operation", op.String())
	}
}

func (s *Usecase) record(ctx context.Context, counter metric.Int64Counter, err error, success entity.Outcome) {
	if counter == nil {
		return
	}

	status := success.String()
	if err != nil {
		status = goerror.StatusOf(err)
	}

	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func invalidRequest(err error, msg string) error {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		err = goerror.NewInvalidInput(err)
	}
	return goerror.Reshape(err, goerror.WithMessage(msg), goerror.WithStatus(entity.OutcomeInvalidRequest.String()))
}

func storageError(err error) error {
	return goerror.NewServer(err,
		goerror.WithMessage("Failed to store OTP"),
		goerror.WithStatus(entity.OutcomeStorageError.String()),
	)
}
