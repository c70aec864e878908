package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/athebyme/gomarket-sync/internal/adapters/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig("host=localhost port=5432 user=u password=p dbname=sync sslmode=disable", PoolOptions{})
	require.NoError(t, err)

	def := DefaultPoolOptions()
	assert.Equal(t, def.MaxConns, cfg.MaxConns)
	assert.Equal(t, def.MinConns, cfg.MinConns)
	assert.Equal(t, def.MaxConnLifetime, cfg.MaxConnLifetime)
	assert.Equal(t, "sync", cfg.ConnConfig.Database)
}

func TestParseConfig_DSNPoolSizeWins(t *testing.T) {
	cfg, err := ParseConfig("host=localhost user=u password=p dbname=sync pool_max_conns=3", PoolOptions{MaxConns: 20, MinConns: 5})
	require.NoError(t, err)

	assert.Equal(t, int32(3), cfg.MaxConns)
	assert.Equal(t, int32(3), cfg.MinConns)
}

func TestParseConfig_Options(t *testing.T) {
	cfg, err := ParseConfig("postgres://u:p@localhost:5432/sync", PoolOptions{MaxConns: 25, MinConns: 4, MaxConnIdleTime: time.Minute})
	require.NoError(t, err)

	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(4), cfg.MinConns)
	assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig("postgres://u:p@localhost:notaport/sync", PoolOptions{})
	assert.Error(t, err)
}

func TestRollbackLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		RollbackLogger(logger.NewNopLogger())(errors.New("conn closed"), errors.New("upsert failed"))
	})
}
