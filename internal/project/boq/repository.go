package boq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/shared"
)

// LineAmounts is one row of a batch total rewrite during project
// recalculation.
type LineAmounts struct {
	LineID     int64
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Unpriced   bool
}

type Repository interface {
	ListCategories(ctx context.Context, projectID int64) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, id int64, c Category) error
	// DeleteSubtree removes the category, all descendant categories and
	// every line they own in one transaction.
	DeleteSubtree(ctx context.Context, id int64) error

	ListLines(ctx context.Context, projectID int64) ([]Line, error)
	ListLinesByCategory(ctx context.Context, categoryID int64) ([]Line, error)
	GetLine(ctx context.Context, id int64) (Line, error)
	CreateLine(ctx context.Context, l Line) (Line, error)
	UpdateLine(ctx context.Context, id int64, l Line) error
	DeleteLine(ctx context.Context, id int64) error
	// RewriteLineAmounts applies a recalculation result atomically.
	RewriteLineAmounts(ctx context.Context, updates []LineAmounts) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const categoryColumns = `id, project_id, parent_id, name, sort_order`

func (r *repository) ListCategories(ctx context.Context, projectID int64) ([]Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM boq_categories WHERE project_id = $1 ORDER BY sort_order, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.ParentID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM boq_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.ProjectID, &c.ParentID, &c.Name, &c.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO boq_categories (project_id, parent_id, name, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		c.ProjectID, c.ParentID, c.Name, c.SortOrder, now).Scan(&c.ID)
	if err != nil {
		return Category{}, mapPgError(err)
	}
	return c, nil
}

func (r *repository) UpdateCategory(ctx context.Context, id int64, c Category) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE boq_categories SET parent_id = $1, name = $2, sort_order = $3, updated_at = $4 WHERE id = $5`,
		c.ParentID, c.Name, c.SortOrder, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) DeleteSubtree(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const subtree = `
			WITH RECURSIVE subtree AS (
				SELECT id FROM boq_categories WHERE id = $1
				UNION ALL
				SELECT c.id FROM boq_categories c JOIN subtree s ON c.parent_id = s.id
			)`
		if _, err := tx.Exec(ctx,
			subtree+` DELETE FROM boq_lines WHERE category_id IN (SELECT id FROM subtree)`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			subtree+` DELETE FROM boq_categories WHERE id IN (SELECT id FROM subtree)`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

const lineColumns = `id, project_id, category_id, kind, analysis_id, code, name, unit, volume, unit_price, total_price, unpriced, sort_order`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.ProjectID, &l.CategoryID, &l.Kind, &l.AnalysisID,
		&l.Code, &l.Name, &l.Unit, &l.Volume, &l.UnitPrice, &l.TotalPrice, &l.Unpriced, &l.SortOrder)
	return l, err
}

func (r *repository) ListLines(ctx context.Context, projectID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lineColumns+` FROM boq_lines WHERE project_id = $1 ORDER BY category_id, sort_order, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func (r *repository) ListLinesByCategory(ctx context.Context, categoryID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lineColumns+` FROM boq_lines WHERE category_id = $1 ORDER BY sort_order, id`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]Line, error) {
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.CategoryID, &l.Kind, &l.AnalysisID,
			&l.Code, &l.Name, &l.Unit, &l.Volume, &l.UnitPrice, &l.TotalPrice, &l.Unpriced, &l.SortOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) GetLine(ctx context.Context, id int64) (Line, error) {
	l, err := scanLine(r.pool.QueryRow(ctx, `SELECT `+lineColumns+` FROM boq_lines WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
		}
		return Line{}, err
	}
	return l, nil
}

func (r *repository) CreateLine(ctx context.Context, l Line) (Line, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO boq_lines (project_id, category_id, kind, analysis_id, code, name, unit, volume, unit_price, total_price, unpriced, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id`,
		l.ProjectID, l.CategoryID, l.Kind, l.AnalysisID, l.Code, l.Name, l.Unit,
		l.Volume, l.UnitPrice, l.TotalPrice, l.Unpriced, l.SortOrder, now).Scan(&l.ID)
	if err != nil {
		return Line{}, mapPgError(err)
	}
	return l, nil
}

func (r *repository) UpdateLine(ctx context.Context, id int64, l Line) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE boq_lines SET category_id = $1, code = $2, name = $3, unit = $4, volume = $5,
		 unit_price = $6, total_price = $7, unpriced = $8, sort_order = $9, updated_at = $10 WHERE id = $11`,
		l.CategoryID, l.Code, l.Name, l.Unit, l.Volume, l.UnitPrice, l.TotalPrice, l.Unpriced, l.SortOrder, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) DeleteLine(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boq_lines WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) RewriteLineAmounts(ctx context.Context, updates []LineAmounts) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		for _, u := range updates {
			_, err := tx.Exec(ctx,
				`UPDATE boq_lines SET unit_price = $1, total_price = $2, unpriced = $3, updated_at = $4 WHERE id = $5`,
				u.UnitPrice, u.TotalPrice, u.Unpriced, now, u.LineID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("boq: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("boq reference: %w", shared.ErrValidation)
		}
	}
	return err
}
