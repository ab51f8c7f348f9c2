package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/rencana-app/rencana/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, fmt.Errorf("%w: invalid item id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := s.validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

// Update rejects mutation of items already referenced by a composition:
// prices and analyses assume base items never change underneath them.
func (s *Service) Update(ctx context.Context, id int64, item Item) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid item id", shared.ErrValidation)
	}
	if err := s.validate(item); err != nil {
		return err
	}
	refs, err := s.repo.ReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("item %d is referenced by %d composition entries: %w", id, refs, shared.ErrImmutable)
	}
	return s.repo.Update(ctx, id, item)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid item id", shared.ErrValidation)
	}
	refs, err := s.repo.ReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("item %d is referenced by %d composition entries: %w", id, refs, shared.ErrImmutable)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(item Item) error {
	if strings.TrimSpace(item.Code) == "" {
		return fmt.Errorf("%w: item code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: item name is required", shared.ErrValidation)
	}
	if !item.Category.Valid() {
		return fmt.Errorf("%w: category must be material, labor or equipment", shared.ErrValidation)
	}
	if item.UnitID <= 0 {
		return fmt.Errorf("%w: unit is required", shared.ErrValidation)
	}
	return nil
}
