package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  server:
    cors: "https://a.example, https://b.example,"
modules:
  otp:
    validity_seconds: 300
    code_digits: 6
    allowlist:
      identities:
        - a@x.com
        - " B@x.com "
    device_hint_header: X-Mac-Address
database:
  pool:
    max_conns: 20
instrument:
  trace_sample_ratio: 0.25
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.GetSecond("modules.otp.validity_seconds"))
	assert.Equal(t, 6, cfg.GetInt("modules.otp.code_digits"))
	assert.Equal(t, "X-Mac-Address", cfg.GetString("modules.otp.device_hint_header"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetArray("app.server.cors"))
	assert.Equal(t, []string{"a@x.com", "B@x.com"}, cfg.GetArray("modules.otp.allowlist.identities"))
	assert.Empty(t, cfg.GetArray("modules.otp.missing"))
	assert.Equal(t, int32(20), cfg.GetInt32("database.pool.max_conns"))
	assert.InDelta(t, 0.25, cfg.GetFloat64("instrument.trace_sample_ratio"), 1e-9)
	assert.NoError(t, cfg.Close())
}

func TestNewViperFromBytes_RequiresType(t *testing.T) {
	_, err := NewViperFromBytes(" ", nil)
	assert.Error(t, err)
}

func TestNewViperFromBytes_EnvOverride(t *testing.T) {
	t.Setenv("MODULES_OTP_CODE_DIGITS", "8")

	cfg, err := NewViperFromBytes("yaml", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetInt("modules.otp.code_digits"))
}

func TestNewViper_LoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, "test.env")

	require.NoError(t, os.WriteFile(cfgPath, []byte(sampleYAML), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("MODULES_OTP_VALIDITY_SECONDS=120\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MODULES_OTP_VALIDITY_SECONDS") })

	cfg, err := NewViper(cfgPath, envPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.GetSecond("modules.otp.validity_seconds"))
}

func TestSecondsOrIntOr(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(`
modules:
  otp:
    validity_seconds: 120
    sweep:
      interval_seconds: -5
  alert:
    consumer_concurrency: 4
`))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, SecondsOr(cfg, "modules.otp.validity_seconds", time.Minute))
	assert.Equal(t, time.Minute, SecondsOr(cfg, "modules.otp.sweep.interval_seconds", time.Minute))
	assert.Equal(t, time.Minute, SecondsOr(cfg, "modules.otp.missing_seconds", time.Minute))

	assert.Equal(t, 4, IntOr(cfg, "modules.alert.consumer_concurrency", 1))
	assert.Equal(t, 6, IntOr(cfg, "modules.otp.code_digits", 6))
}
