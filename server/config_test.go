package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "sqlite://agrisense.db", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.LoginRateBurst)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestOpenStoreRejectsUnknownScheme(t *testing.T) {
	_, err := OpenStore(context.Background(), "mysql://localhost/agri")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: dialectSQLite}
	pg := &Store{dialect: dialectPostgres}

	q := `SELECT id FROM users WHERE id = $1 AND email = $12`
	assert.Equal(t, `SELECT id FROM users WHERE id = ?1 AND email = ?12`, sqlite.rebind(q))
	assert.Equal(t, q, pg.rebind(q))
}
