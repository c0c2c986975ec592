package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/inbound"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/email"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/allowlist"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"

	AllowlistSourceConfig  = "config"
	AllowlistSourceStorage = "storage"
)

type store interface {
	CreateCode(ctx context.Context, in entity.NewOTP) (int64, error)
	GetLatestCode(ctx context.Context, identity string) (*entity.OTP, error)
	DeleteCode(ctx context.Context, id int64) (bool, error)
	DeleteCodesIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type Dependency struct {
	// DBConn is required by the postgres store driver only.
	DBConn *pgxpool.Pool
	// Storage is required when the allow-list is read from object storage.
	Storage storage.Storage

	CacheConn   redis.UniversalClient      `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

// New wires the otp module, registers its routes and, when enabled, starts
// the background sweeper on ctx.
func New(ctx context.Context, dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoStore, err := newStore(ctx, dep)
	if err != nil {
		return err
	}

	list, err := newAllowlist(ctx, dep)
	if err != nil {
		return err
	}

	gen, err := otp.NewNumeric(config.IntOr(dep.Config, "modules.otp.code_digits", otp.DefaultDigits))
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoStore:   repoStore,
		RepoEmail:   email.New(dep.Mail, dep.Instrument),
		RepoAlert:   mq.NewMessaging(dep.Messaging, dep.UID, dep.Instrument),
		Allowlist:   list,
		Generator:   gen,
		Idempotency: dep.Idempotency,
		Validator:   dep.Validator,
		Config:      dep.Config,
		Clock:       dep.Clock,
		Goroutine:   dep.Goroutine,
		Instrument:  dep.Instrument,
		HealthChecks: map[string]usecase.HealthCheck{
			"store": repoStore.Ping,
			"cache": func(ctx context.Context) error { return dep.CacheConn.Ping(ctx).Err() },
		},
	})

	inbound.RegisterHTTPEndpoint(dep.Router, dep.Config, uc)
	slog.InfoContext(ctx, "otp module ready", "code_digits", gen.Digits(), "validity", uc.Validity())

	if dep.Config.GetBool("modules.otp.sweep.enabled") {
		dep.Goroutine.Every(ctx, "otp-sweep", uc.SweepInterval(), uc.RunSweep)
	}

	return nil
}

func newStore(ctx context.Context, dep Dependency) (store, error) {
	driver := dep.Config.GetString("modules.otp.store.driver")

	switch driver {
	case "", StoreDriverPostgres:
		if dep.DBConn == nil {
			return nil, fmt.Errorf("otp: store driver %q needs a database connection", StoreDriverPostgres)
		}
		s := db.NewDB(dep.DBConn, dep.Instrument)
		if dep.Config.GetBool("modules.otp.store.auto_migrate") {
			if err := s.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("otp: migrate store: %w", err)
			}
		}
		return s, nil

	case StoreDriverRedis:
		return cache.NewCache(dep.CacheConn, dep.Instrument), nil

	default:
		return nil, fmt.Errorf("otp: unsupported store driver %q", driver)
	}
}

func newAllowlist(ctx context.Context, dep Dependency) (*allowlist.List, error) {
	source := dep.Config.GetString("modules.otp.allowlist.source")

	var (
		list *allowlist.List
		err  error
	)
	switch source {
	case "", AllowlistSourceConfig:
		list = allowlist.New(dep.Config.GetArray("modules.otp.allowlist.identities"))

	case AllowlistSourceStorage:
		if dep.Storage == nil {
			return nil, fmt.Errorf("otp: allow-list source %q needs object storage", AllowlistSourceStorage)
		}
		list, err = allowlist.LoadFromStorage(ctx, dep.Storage,
			dep.Config.GetString("modules.otp.allowlist.bucket"),
			dep.Config.GetString("modules.otp.allowlist.key"),
		)
		if err != nil {
			return nil, fmt.Errorf("otp: load allow-list: %w", err)
		}

	default:
		return nil, fmt.Errorf("otp: unsupported allow-list source %q", source)
	}

	if list.Len() == 0 {
		slog.WarnContext(ctx, "otp allow-list is empty, every request will be rejected")
	}
	slog.InfoContext(ctx, "otp allow-list loaded", "source", source, "identities", list.Len())

	return list, nil
}
