package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x", DBMaxConns: 4})
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.Equal(t, 4, cfg.MaxConns)
}

func TestConfigValidateAndMigration(t *testing.T) {
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: PostgresBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())

	d, dsn, err := Config{Type: SQLiteBackend, SQLiteDBPath: "/tmp/f.db"}.Migration()
	require.NoError(t, err)
	assert.Equal(t, storage.DialectSQLite, d)
	assert.Equal(t, storage.SQLiteDSN("/tmp/f.db"), dsn)

	_, _, err = Config{Type: MemoryBackend}.Migration()
	assert.Error(t, err)

	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
	assert.True(t, SQLiteBackend.Persistent())
	assert.False(t, MemoryBackend.Persistent())
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "db", "finanzas.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, res.Cleanup()) }()

			require.NoError(t, res.Store.Ping(ctx))
			u, err := res.Store.CreateUser(ctx, core.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x", Provider: core.ProviderLocal})
			require.NoError(t, err)
			assert.Positive(t, u.ID)
		})
	}

	_, err := f.CreateBackend(ctx, Config{Type: "sheets"})
	assert.Error(t, err)
}
