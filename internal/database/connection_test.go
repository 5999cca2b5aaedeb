package database

import (
	"testing"
	"time"

	"github.com/johkker/delice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		User:              "postgres",
		Password:          "secret",
		Name:              "delice",
		SSLMode:           "disable",
		MaxConns:          12,
		MinConns:          3,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   2 * time.Minute,
		HealthCheckPeriod: 45 * time.Second,
		ConnectTimeout:    4 * time.Second,
	}
}

func TestNewPoolConfig(t *testing.T) {
	pc, err := newPoolConfig(testDatabaseConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, 30*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 2*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, 45*time.Second, pc.HealthCheckPeriod)
	assert.Equal(t, 4*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, "delice", pc.ConnConfig.Database)
	assert.Equal(t, applicationName, pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "UTC", pc.ConnConfig.RuntimeParams["timezone"])
}

func TestNewPoolConfig_IgnoresInvalidLimits(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.MaxConns = 2
	cfg.MinConns = 5
	cfg.MaxConnLifetime = 0

	pc, err := newPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Zero(t, pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
}
