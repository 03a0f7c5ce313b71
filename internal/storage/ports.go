package storage

import (
	"context"

	"finanzas/internal/core"
)

// Ports implemented by every store.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UpdateUser(ctx context.Context, u core.User) (core.User, error)
		UserByID(ctx context.Context, id int64) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UsernameExists(ctx context.Context, username string) (bool, error)
	}

	CategoryStore interface {
		// ListCategories returns the user's categories ordered by name.
		ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
		// GetCategory returns core.ErrNotFound when the category belongs to
		// another user.
		GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
		// CategoryNameExists ignores the category with id excludeID.
		CategoryNameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory detaches any subcategories before removing the row.
		DeleteCategory(ctx context.Context, userID, id int64) error
	}

	Store interface {
		UserStore
		CategoryStore
		Ping(ctx context.Context) error
		Close() error
	}
)
