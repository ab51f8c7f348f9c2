package items

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
	List(ctx context.Context, filters ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) error
	Delete(ctx context.Context, id int64) error
	ReferenceCount(ctx context.Context, id int64) (int, error)
}

// ListFilters extends the shared filters with a category restriction.
type ListFilters struct {
	shared.ListFilters
	Category ItemCategory
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	query := `SELECT i.id, i.code, i.name, i.category, i.unit_id, u.code
		FROM items i JOIN units u ON u.id = i.unit_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM items i WHERE 1=1`
	args := []interface{}{}
	countArgs := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (i.name ILIKE $` + strconv.Itoa(argCount) + ` OR i.code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.Category != "" {
		argCount++
		clause := ` AND i.category = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, string(filters.Category))
		countArgs = append(countArgs, string(filters.Category))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

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

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.Category, &it.UnitID, &it.UnitCode); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx,
		`SELECT i.id, i.code, i.name, i.category, i.unit_id, u.code
		 FROM items i JOIN units u ON u.id = i.unit_id WHERE i.id = $1`, id).
		Scan(&it.ID, &it.Code, &it.Name, &it.Category, &it.UnitID, &it.UnitCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
		}
		return Item{}, err
	}
	return it, nil
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO items (code, name, category, unit_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		item.Code, item.Name, item.Category, item.UnitID, now).Scan(&item.ID)
	if err != nil {
		return Item{}, mapPgError(err)
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE items SET code = $1, name = $2, category = $3, unit_id = $4, updated_at = $5 WHERE id = $6`,
		item.Code, item.Name, item.Category, item.UnitID, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ReferenceCount returns how many composition entries reference the item,
// across master and project analyses.
func (r *repository) ReferenceCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM ahsp_entries WHERE item_id = $1)
		      + (SELECT COUNT(*) FROM project_ahsp_entries WHERE item_id = $1)`, id).
		Scan(&count)
	return count, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("item code: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("item reference: %w", shared.ErrValidation)
		}
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "i.code " + dir
	case "category":
		return "i.category " + dir + ", i.name ASC"
	default:
		return "i.name " + dir
	}
}
