package otp

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDependency(t *testing.T, yaml string) Dependency {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return Dependency{Config: cfg, CacheConn: client, Instrument: instrument.NewNoop()}
}

func TestNewStore(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		dep := newDependency(t, "modules: {otp: {store: {driver: redis}}}\n")

		s, err := newStore(context.Background(), dep)
		require.NoError(t, err)
		assert.IsType(t, &cache.Cache{}, s)
		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("postgres without connection", func(t *testing.T) {
		dep := newDependency(t, "modules: {otp: {store: {driver: postgres}}}\n")

		_, err := newStore(context.Background(), dep)
		assert.ErrorContains(t, err, "needs a database connection")
	})

	t.Run("default is postgres", func(t *testing.T) {
		dep := newDependency(t, "modules: {}\n")

		_, err := newStore(context.Background(), dep)
		assert.ErrorContains(t, err, "needs a database connection")
	})

	t.Run("unknown", func(t *testing.T) {
		dep := newDependency(t, "modules: {otp: {store: {driver: sqlite}}}\n")

		_, err := newStore(context.Background(), dep)
		assert.ErrorContains(t, err, `unsupported store driver "sqlite"`)
	})
}

func TestNewAllowlist(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		dep := newDependency(t, `
modules:
  otp:
    allowlist:
      identities: " Alice@Example.com , bob@example.com"
`)

		list, err := newAllowlist(context.Background(), dep)
		require.NoError(t, err)
		assert.Equal(t, 2, list.Len())
		assert.True(t, list.IsAuthorized("alice@example.com"))
		assert.False(t, list.IsAuthorized("carol@example.com"))
	})

	t.Run("empty list is allowed", func(t *testing.T) {
		dep := newDependency(t, "modules: {}\n")

		list, err := newAllowlist(context.Background(), dep)
		require.NoError(t, err)
		assert.Zero(t, list.Len())
	})

	t.Run("storage without client", func(t *testing.T) {
		dep := newDependency(t, "modules: {otp: {allowlist: {source: storage}}}\n")

		_, err := newAllowlist(context.Background(), dep)
		assert.ErrorContains(t, err, "needs object storage")
	})

	t.Run("unknown source", func(t *testing.T) {
		dep := newDependency(t, "modules: {otp: {allowlist: {source: ldap}}}\n")

		_, err := newAllowlist(context.Background(), dep)
		assert.ErrorContains(t, err, `unsupported allow-list source "ldap"`)
	})
}
