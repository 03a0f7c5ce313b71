package core

import (
	"errors"
	"time"
)

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

type (
	Provider string

	CategoryType string

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string // empty for accounts created through a provider
		Provider     Provider
		ProviderID   string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Icon      string
		Color     string
		Type      CategoryType
		ParentID  *int64
		CreatedAt time.Time
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrProviderAccount   = errors.New("account uses an external provider")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// HasPassword reports whether the user can sign in with e-mail and password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsValid returns true if the provider is one of the supported sign-in providers.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderApple:
		return true
	default:
		return false
	}
}

// IsValid returns true if the category type is known.
func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryExpense, CategoryIncome:
		return true
	default:
		return false
	}
}
