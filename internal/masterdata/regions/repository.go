package regions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rencana-app/rencana/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Region, int, error)
	Get(ctx context.Context, id int64) (Region, error)
	Create(ctx context.Context, region Region) (Region, error)
	Update(ctx context.Context, id int64, region Region) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Region, int, error) {
	query := `SELECT id, code, name, province FROM regions WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM regions WHERE 1=1`
	args := []interface{}{}
	countArgs := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + ` OR province ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == "desc" {
		dir = "DESC"
	}
	query += " ORDER BY name " + dir

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var rg Region
		if err := rows.Scan(&rg.ID, &rg.Code, &rg.Name, &rg.Province); err != nil {
			return nil, 0, err
		}
		regions = append(regions, rg)
	}
	return regions, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Region, error) {
	var rg Region
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, province FROM regions WHERE id = $1`, id).
		Scan(&rg.ID, &rg.Code, &rg.Name, &rg.Province)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Region{}, fmt.Errorf("region %d: %w", id, shared.ErrNotFound)
		}
		return Region{}, err
	}
	return rg, nil
}

func (r *repository) Create(ctx context.Context, region Region) (Region, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO regions (code, name, province, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		region.Code, region.Name, region.Province, now).Scan(&region.ID)
	if err != nil {
		return Region{}, mapUniqueViolation(err)
	}
	return region, nil
}

func (r *repository) Update(ctx context.Context, id int64, region Region) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE regions SET code = $1, name = $2, province = $3, updated_at = $4 WHERE id = $5`,
		region.Code, region.Name, region.Province, time.Now(), id)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("region %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM regions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("region %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("region code: %w", shared.ErrDuplicate)
	}
	return err
}
