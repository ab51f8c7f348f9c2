package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/boq"
)

const cacheKeyPrefix = "rencana:rollup:"

// ProjectSource supplies the project head with its cascade percentages.
type ProjectSource interface {
	Get(ctx context.Context, id int64) (project.Project, error)
}

// BoqSource supplies the category arena and evaluated lines.
type BoqSource interface {
	ListCategories(ctx context.Context, projectID int64) ([]boq.Category, error)
	ListLines(ctx context.Context, projectID int64) ([]boq.Line, error)
}

// Service computes project rollups, caching results in Redis and
// collapsing concurrent recomputation behind singleflight.
type Service struct {
	logger   *slog.Logger
	projects ProjectSource
	boq      BoqSource
	cache    *redis.Client
	ttl      time.Duration
	group    singleflight.Group
}

func NewService(logger *slog.Logger, projects ProjectSource, boqSource BoqSource, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{logger: logger, projects: projects, boq: boqSource, cache: cache, ttl: ttl}
}

// Rollup returns the cached result when fresh, otherwise recomputes it.
// Concurrent requests for the same project share one computation.
func (s *Service) Rollup(ctx context.Context, projectID int64) (Result, error) {
	if s.cache != nil {
		if cached, ok := s.fromCache(ctx, projectID); ok {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(strconv.FormatInt(projectID, 10), func() (interface{}, error) {
		res, err := s.compute(ctx, projectID)
		if err != nil {
			return Result{}, err
		}
		s.store(ctx, projectID, res)
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// InvalidateRollup drops the cached result; satisfies
// project.CacheInvalidator.
func (s *Service) InvalidateRollup(ctx context.Context, projectID int64) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, cacheKey(projectID)).Err(); err != nil {
		s.logger.Warn("rollup cache invalidate failed", "error", err, "project_id", projectID)
	}
	return nil
}

func (s *Service) compute(ctx context.Context, projectID int64) (Result, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Result{}, err
	}
	cats, err := s.boq.ListCategories(ctx, projectID)
	if err != nil {
		return Result{}, err
	}
	lines, err := s.boq.ListLines(ctx, projectID)
	if err != nil {
		return Result{}, err
	}

	in := Input{
		Categories:  make([]CategoryNode, 0, len(cats)),
		Lines:       make([]LineTotal, 0, len(lines)),
		OverheadPct: p.OverheadPct,
		ProfitPct:   p.ProfitPct,
		TaxPct:      p.TaxPct,
	}
	for _, c := range cats {
		in.Categories = append(in.Categories, CategoryNode{ID: c.ID, ParentID: c.ParentID})
	}
	for _, l := range lines {
		in.Lines = append(in.Lines, LineTotal{CategoryID: l.CategoryID, Total: l.TotalPrice, Unpriced: l.Unpriced})
	}
	return Compute(in)
}

func (s *Service) fromCache(ctx context.Context, projectID int64) (Result, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(projectID)).Bytes()
	if err != nil {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		s.logger.Warn("rollup cache decode failed", "error", err, "project_id", projectID)
		return Result{}, false
	}
	return res, true
}

func (s *Service) store(ctx context.Context, projectID int64, res Result) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("rollup cache encode failed", "error", err, "project_id", projectID)
		return
	}
	if err := s.cache.Set(ctx, cacheKey(projectID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("rollup cache store failed", "error", err, "project_id", projectID)
	}
}

func cacheKey(projectID int64) string {
	return cacheKeyPrefix + fmt.Sprintf("%d", projectID)
}
