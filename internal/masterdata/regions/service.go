package regions

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Region, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Region, error) {
	if id <= 0 {
		return Region{}, fmt.Errorf("%w: invalid region id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, region Region) (Region, error) {
	if err := s.validate(region); err != nil {
		return Region{}, err
	}
	return s.repo.Create(ctx, region)
}

func (s *Service) Update(ctx context.Context, id int64, region Region) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid region id", shared.ErrValidation)
	}
	if err := s.validate(region); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, region)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid region id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(rg Region) error {
	if strings.TrimSpace(rg.Code) == "" {
		return fmt.Errorf("%w: region code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(rg.Name) == "" {
		return fmt.Errorf("%w: region name is required", shared.ErrValidation)
	}
	return nil
}
