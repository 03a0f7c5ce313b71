package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// CategoryPatch holds the fields to change on update. Nil fields are left
// as they are.
type CategoryPatch struct {
	Name        *string
	Icon        *string
	Color       *string
	Type        *core.CategoryType
	ParentID    *int64
	ClearParent bool
}

// Replace builds a patch that overwrites every field, as a PUT does.
func Replace(in core.CategoryInput) CategoryPatch {
	p := CategoryPatch{Name: &in.Name, Icon: &in.Icon, Color: &in.Color, Type: &in.Type, ParentID: in.ParentID}
	p.ClearParent = in.ParentID == nil
	return p
}

func (p CategoryPatch) apply(c core.Category) core.CategoryInput {
	in := core.CategoryInput{Name: c.Name, Icon: c.Icon, Color: c.Color, Type: c.Type, ParentID: c.ParentID}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Icon != nil {
		in.Icon = *p.Icon
	}
	if p.Color != nil {
		in.Color = *p.Color
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	switch {
	case p.ParentID != nil:
		in.ParentID = p.ParentID
	case p.ClearParent:
		in.ParentID = nil
	}
	return in
}

// CategoryService manages a user's categories. Lists are cached per user
// and invalidated on every write.
type CategoryService struct {
	store     storage.CategoryStore
	publisher Publisher
	logger    *log.Logger
	lists     *cache.LRUCache[[]core.Category]
}

func NewCategoryService(store storage.CategoryStore, publisher Publisher, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentCategory),
		lists:     cache.NewLRUCache[[]core.Category](500, 5*time.Minute),
	}
}

// Cache exposes the list cache for periodic cleanup.
func (s *CategoryService) Cache() *cache.LRUCache[[]core.Category] {
	return s.lists
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// List returns the user's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]core.Category, error) {
	if cached, ok := s.lists.Get(cacheKey(userID)); ok {
		s.logger.DebugContext(ctx, "Category cache hit", log.FieldUserID, userID, "count", len(cached))
		return cloneCategories(cached), nil
	}

	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	s.lists.Set(cacheKey(userID), cloneCategories(cats))
	return cats, nil
}

// Get returns one of the user's categories.
func (s *CategoryService) Get(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

// Create validates and stores a new category.
func (s *CategoryService) Create(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error) {
	in = in.Normalize()
	if err := s.validate(ctx, userID, 0, in); err != nil {
		return core.Category{}, err
	}

	c, err := s.store.CreateCategory(ctx, core.Category{
		UserID:   userID,
		Name:     in.Name,
		Icon:     in.Icon,
		Color:    in.Color,
		Type:     in.Type,
		ParentID: in.ParentID,
	})
	if errors.Is(err, core.ErrConflict) {
		return core.Category{}, core.ValidationErrors{"name": core.MsgCategoryNameTaken}
	}
	if err != nil {
		return core.Category{}, err
	}

	s.lists.Delete(cacheKey(userID))
	s.logger.InfoContext(ctx, "Category created", log.FieldUserID, userID, log.FieldCategoryID, c.ID)
	publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventCategoryCreated, userID, c.ID, c.Name).
		With("type", string(c.Type)))
	return c, nil
}

// Update applies patch to one of the user's categories.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, patch CategoryPatch) (core.Category, error) {
	current, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}

	in := patch.apply(current).Normalize()
	if err := s.validate(ctx, userID, id, in); err != nil {
		return core.Category{}, err
	}

	current.Name, current.Icon, current.Color, current.Type, current.ParentID = in.Name, in.Icon, in.Color, in.Type, in.ParentID
	updated, err := s.store.UpdateCategory(ctx, current)
	if errors.Is(err, core.ErrConflict) {
		return core.Category{}, core.ValidationErrors{"name": core.MsgCategoryNameTaken}
	}
	if err != nil {
		return core.Category{}, err
	}

	s.lists.Delete(cacheKey(userID))
	s.logger.InfoContext(ctx, "Category updated", log.FieldUserID, userID, log.FieldCategoryID, id)
	publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventCategoryUpdated, userID, id, updated.Name))
	return updated, nil
}

// Delete removes one of the user's categories.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	current, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}

	s.lists.Delete(cacheKey(userID))
	s.logger.InfoContext(ctx, "Category deleted", log.FieldUserID, userID, log.FieldCategoryID, id)
	publish(ctx, s.publisher, s.logger, amqp.NewEvent(amqp.EventCategoryDeleted, userID, id, current.Name))
	return nil
}

func (s *CategoryService) validate(ctx context.Context, userID, selfID int64, in core.CategoryInput) error {
	errs := core.ValidationErrors{}
	if err := in.Validate(); err != nil {
		var ve core.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		errs = ve
	}

	if _, bad := errs["name"]; !bad {
		taken, err := s.store.CategoryNameExists(ctx, userID, in.Name, selfID)
		if err != nil {
			return fmt.Errorf("check category name: %w", err)
		}
		if taken {
			errs.Add("name", core.MsgCategoryNameTaken)
		}
	}

	if _, bad := errs["parent_id"]; !bad && in.ParentID != nil {
		if *in.ParentID == selfID {
			errs.Add("parent_id", core.MsgCategoryParent)
		} else if _, err := s.store.GetCategory(ctx, userID, *in.ParentID); errors.Is(err, core.ErrNotFound) {
			errs.Add("parent_id", core.MsgCategoryParent)
		} else if err != nil {
			return fmt.Errorf("check parent category: %w", err)
		}
	}
	return errs.OrNil()
}

func cloneCategories(in []core.Category) []core.Category {
	out := make([]core.Category, len(in))
	for i, c := range in {
		if c.ParentID != nil {
			p := *c.ParentID
			c.ParentID = &p
		}
		out[i] = c
	}
	return out
}
