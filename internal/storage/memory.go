package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finanzas/internal/core"
)

// MemoryStore is a Store kept in process memory. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]core.User
	categories map[int64]core.Category
	nextUser   int64
	nextCat    int64
	now        func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int64]core.User),
		categories: make(map[int64]core.Category),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) CreateUser(_ context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	if err := m.checkUserUnique(u); err != nil {
		return core.User{}, err
	}
	if u.Provider == "" {
		u.Provider = core.ProviderLocal
	}
	m.nextUser++
	u.ID = m.nextUser
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) checkUserUnique(u core.User) error {
	for _, other := range m.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return fmt.Errorf("create user: %w: username", core.ErrConflict)
		}
		if other.Email == u.Email {
			return fmt.Errorf("create user: %w: email", core.ErrConflict)
		}
	}
	return nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.users[u.ID]
	if !ok {
		return core.User{}, fmt.Errorf("update user %d: %w", u.ID, core.ErrNotFound)
	}
	u.Email = strings.ToLower(u.Email)
	if err := m.checkUserUnique(u); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UserByID(_ context.Context, id int64) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (m *MemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, copyCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetCategory(_ context.Context, userID, id int64) (core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, core.ErrNotFound)
	}
	return copyCategory(c), nil
}

func (m *MemoryStore) CategoryNameExists(_ context.Context, userID int64, name string, excludeID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nameTaken(userID, name, excludeID), nil
}

func (m *MemoryStore) nameTaken(userID int64, name string, excludeID int64) bool {
	for _, c := range m.categories {
		if c.UserID == userID && c.Name == name && c.ID != excludeID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[c.UserID]; !ok {
		return core.Category{}, fmt.Errorf("create category: user %d: %w", c.UserID, core.ErrNotFound)
	}
	if m.nameTaken(c.UserID, c.Name, 0) {
		return core.Category{}, fmt.Errorf("create category: %w: name", core.ErrConflict)
	}
	m.nextCat++
	c.ID = m.nextCat
	c.CreatedAt = m.now()
	c = copyCategory(c)
	m.categories[c.ID] = c
	return copyCategory(c), nil
}

func (m *MemoryStore) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.categories[c.ID]
	if !ok || prev.UserID != c.UserID {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, core.ErrNotFound)
	}
	if m.nameTaken(c.UserID, c.Name, c.ID) {
		return core.Category{}, fmt.Errorf("update category %d: %w: name", c.ID, core.ErrConflict)
	}
	c.CreatedAt = prev.CreatedAt
	c = copyCategory(c)
	m.categories[c.ID] = c
	return copyCategory(c), nil
}

func (m *MemoryStore) DeleteCategory(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("delete category %d: %w", id, core.ErrNotFound)
	}
	for cid, child := range m.categories {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			m.categories[cid] = child
		}
	}
	delete(m.categories, id)
	return nil
}

func copyCategory(c core.Category) core.Category {
	if c.ParentID != nil {
		p := *c.ParentID
		c.ParentID = &p
	}
	return c
}
