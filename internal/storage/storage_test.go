package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	lite, err := NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "db", "finanzas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	out := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": lite,
	}
	if dsn := os.Getenv("FINANZAS_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := NewPostgresRepository(ctx, dsn, PoolConfig{MaxOpenConns: 4})
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func TestUsers(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			u, err := s.CreateUser(ctx, core.User{Username: "ana_" + name, Email: "ana@" + name + ".test", PasswordHash: "h"})
			require.NoError(t, err)
			assert.Positive(t, u.ID)
			assert.Equal(t, core.ProviderLocal, u.Provider)
			assert.False(t, u.CreatedAt.IsZero())

			got, err := s.UserByEmail(ctx, "ANA@"+name+".test")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)

			got, err = s.UserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "h", got.PasswordHash)

			exists, err := s.UsernameExists(ctx, "ana_"+name)
			require.NoError(t, err)
			assert.True(t, exists)

			_, err = s.CreateUser(ctx, core.User{Username: "other_" + name, Email: "ana@" + name + ".test"})
			assert.ErrorIs(t, err, core.ErrConflict)

			_, err = s.UserByID(ctx, 999999)
			assert.ErrorIs(t, err, core.ErrNotFound)

			got.Provider = core.ProviderGoogle
			got.ProviderID = "sub-1"
			updated, err := s.UpdateUser(ctx, got)
			require.NoError(t, err)
			assert.Equal(t, "sub-1", updated.ProviderID)
		})
	}
}

func TestCategories(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner, err := s.CreateUser(ctx, core.User{Username: "owner_" + name, Email: "owner@" + name + ".test"})
			require.NoError(t, err)
			other, err := s.CreateUser(ctx, core.User{Username: "other_" + name, Email: "other@" + name + ".test"})
			require.NoError(t, err)

			food, err := s.CreateCategory(ctx, core.Category{UserID: owner.ID, Name: "Comida", Color: "#ff0000", Type: core.CategoryExpense})
			require.NoError(t, err)
			parent := food.ID
			_, err = s.CreateCategory(ctx, core.Category{UserID: owner.ID, Name: "Café", Type: core.CategoryExpense, ParentID: &parent})
			require.NoError(t, err)
			_, err = s.CreateCategory(ctx, core.Category{UserID: owner.ID, Name: "Ahorro", Type: core.CategoryIncome})
			require.NoError(t, err)

			_, err = s.CreateCategory(ctx, core.Category{UserID: owner.ID, Name: "Comida", Type: core.CategoryExpense})
			assert.ErrorIs(t, err, core.ErrConflict)
			_, err = s.CreateCategory(ctx, core.Category{UserID: other.ID, Name: "Comida", Type: core.CategoryExpense})
			assert.NoError(t, err, "names are unique per user only")

			list, err := s.ListCategories(ctx, owner.ID)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"Ahorro", "Café", "Comida"}, []string{list[0].Name, list[1].Name, list[2].Name})
			require.NotNil(t, list[1].ParentID)
			assert.Equal(t, food.ID, *list[1].ParentID)

			taken, err := s.CategoryNameExists(ctx, owner.ID, "Comida", food.ID)
			require.NoError(t, err)
			assert.False(t, taken)
			taken, err = s.CategoryNameExists(ctx, owner.ID, "Comida", 0)
			require.NoError(t, err)
			assert.True(t, taken)

			_, err = s.GetCategory(ctx, other.ID, food.ID)
			assert.ErrorIs(t, err, core.ErrNotFound)

			food.Name = "Alimentos"
			food.Icon = "🍎"
			updated, err := s.UpdateCategory(ctx, food)
			require.NoError(t, err)
			assert.Equal(t, "Alimentos", updated.Name)
			assert.Equal(t, food.CreatedAt.Unix(), updated.CreatedAt.Unix())

			food.UserID = other.ID
			_, err = s.UpdateCategory(ctx, food)
			assert.ErrorIs(t, err, core.ErrNotFound)

			assert.ErrorIs(t, s.DeleteCategory(ctx, other.ID, food.ID), core.ErrNotFound)
			require.NoError(t, s.DeleteCategory(ctx, owner.ID, food.ID))

			list, err = s.ListCategories(ctx, owner.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			for _, c := range list {
				assert.Nil(t, c.ParentID, "subcategories are detached")
			}
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLRepository{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	require.NoError(t, RunMigrations(DialectSQLite, SQLiteDSN(path)))
	v, dirty, err := MigrationVersion(DialectSQLite, SQLiteDSN(path))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, v)

	assert.ErrorIs(t, RunMigrations(Dialect("oracle"), "x"), ErrUnknownDialect)
}
