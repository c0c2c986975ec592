package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDB_mapError(t *testing.T) {
	s := NewDB(nil, instrument.NewNoop())
	other := errors.New("connection reset")

	assert.NoError(t, s.mapError(nil))
	assert.ErrorIs(t, s.mapError(pgx.ErrNoRows), goerror.ErrNotFound)
	assert.ErrorIs(t, s.mapError(&pgconn.PgError{Code: "23505"}), goerror.ErrConflict)
	assert.Same(t, other, s.mapError(other))
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("otpgate"),
		postgres.WithUsername("otpgate"),
		postgres.WithPassword("otpgate"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewDB(pool, instrument.NewNoop())
	require.NoError(t, s.Migrate(ctx))
	// Migrate is safe to repeat on every start.
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))

	return s
}

func TestDB_Postgres(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("latest of none is not found", func(t *testing.T) {
		_, err := s.GetLatestCode(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("create then latest", func(t *testing.T) {
		first, err := s.CreateCode(ctx, entity.NewOTP{Identity: "a@example.com", Code: 111111, IssuedAt: now})
		require.NoError(t, err)
		second, err := s.CreateCode(ctx, entity.NewOTP{Identity: "a@example.com", Code: 222222, IssuedAt: now})
		require.NoError(t, err)
		assert.Greater(t, second, first)

		rec, err := s.GetLatestCode(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, second, rec.ID)
		assert.Equal(t, int64(222222), rec.Code)
		assert.True(t, now.Equal(rec.IssuedAt))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		id, err := s.CreateCode(ctx, entity.NewOTP{Identity: "b@example.com", Code: 333333, IssuedAt: now})
		require.NoError(t, err)

		deleted, err := s.DeleteCode(ctx, id)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.DeleteCode(ctx, id)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("concurrent deletes have one winner", func(t *testing.T) {
		id, err := s.CreateCode(ctx, entity.NewOTP{Identity: "c@example.com", Code: 444444, IssuedAt: now})
		require.NoError(t, err)

		const callers = 8
		results := make([]bool, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Go(func() {
				ok, err := s.DeleteCode(ctx, id)
				assert.NoError(t, err)
				results[i] = ok
			})
		}
		wg.Wait()

		winners := 0
		for _, ok := range results {
			if ok {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("sweep removes only older records", func(t *testing.T) {
		_, err := s.CreateCode(ctx, entity.NewOTP{Identity: "d@example.com", Code: 555555, IssuedAt: now.Add(-2 * time.Hour)})
		require.NoError(t, err)
		keep, err := s.CreateCode(ctx, entity.NewOTP{Identity: "d@example.com", Code: 666666, IssuedAt: now.Add(time.Hour)})
		require.NoError(t, err)

		n, err := s.DeleteCodesIssuedBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		rec, err := s.GetLatestCode(ctx, "d@example.com")
		require.NoError(t, err)
		assert.Equal(t, keep, rec.ID)
	})
}
