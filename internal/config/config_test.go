package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "reconforge", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Scan.MaxConcurrentJobs)
	assert.Equal(t, 4, cfg.Scan.JobParallelism)
	assert.Equal(t, 10*time.Second, cfg.Scan.GracePeriod)
	assert.Equal(t, 30*time.Minute, cfg.Scan.StaleAfter)
	assert.Contains(t, cfg.Scan.Keywords, "admin")
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCAN_JOB_PARALLELISM", "8")
	t.Setenv("SCAN_STALE_AFTER", "1h")
	t.Setenv("SCAN_KEYWORDS", "admin, vpn ,sso")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scan.JobParallelism)
	assert.Equal(t, time.Hour, cfg.Scan.StaleAfter)
	assert.Equal(t, []string{"admin", "vpn", "sso"}, cfg.Scan.Keywords)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("SCAN_MAX_CONCURRENT_JOBS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_MAX_CONCURRENT_JOBS")
}

func TestAddrs(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "recon", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=recon sslmode=disable", db.DSN())

	redis := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", redis.Addr())

	server := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", server.Addr())
}
