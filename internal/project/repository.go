package project

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error)
	Get(ctx context.Context, id int64) (Project, error)
	// Create inserts the project and copies the region's currently
	// effective prices into the project snapshot in one transaction.
	Create(ctx context.Context, p Project) (Project, error)
	Update(ctx context.Context, id int64, p Project) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// Delete removes the project and everything it owns: snapshot
	// prices, local analyses with entries, categories and BOQ lines.
	Delete(ctx context.Context, id int64) error
	// SnapshotAmounts returns the frozen item→amount map used by the
	// resolver for derived lines.
	SnapshotAmounts(ctx context.Context, projectID int64) (map[int64]decimal.Decimal, error)
	SnapshotPrices(ctx context.Context, projectID int64) ([]SnapshotPrice, error)
	UpdateSnapshotPrice(ctx context.Context, projectID, itemID int64, amount decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const projectColumns = `id, name, description, region_id, overhead_pct, profit_pct, tax_pct, status, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.RegionID,
		&p.OverheadPct, &p.ProfitPct, &p.TaxPct, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM projects WHERE 1=1`
	args := []interface{}{}
	countArgs := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "DESC"
	if filters.SortDir == "asc" {
		dir = "ASC"
	}
	if filters.SortBy == "name" {
		query += " ORDER BY name " + dir
	} else {
		query += " ORDER BY created_at " + dir
	}

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

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.RegionID,
			&p.OverheadPct, &p.ProfitPct, &p.TaxPct, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
		}
		return Project{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, p Project) (Project, error) {
	batchID := uuid.NewString()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		err := tx.QueryRow(ctx,
			`INSERT INTO projects (name, description, region_id, overhead_pct, profit_pct, tax_pct, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id, created_at, updated_at`,
			p.Name, p.Description, p.RegionID, p.OverheadPct, p.ProfitPct, p.TaxPct, p.Status, now).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapPgError(err)
		}

		// Freeze the region's effective prices. Later region edits
		// must not reach this project.
		_, err = tx.Exec(ctx, `
			INSERT INTO project_item_prices (project_id, item_id, amount, batch_id, created_at)
			SELECT $1, item_id, amount, $2, $3 FROM (
				SELECT DISTINCT ON (item_id) item_id, amount
				FROM item_prices
				WHERE region_id = $4
				  AND active
				  AND (effective_from IS NULL OR effective_from <= $3)
				  AND (effective_to IS NULL OR effective_to >= $3)
				ORDER BY item_id, effective_from DESC NULLS LAST, id DESC
			) effective`,
			p.ID, batchID, now, p.RegionID)
		return err
	})
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, p Project) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2, overhead_pct = $3, profit_pct = $4, tax_pct = $5, updated_at = $6
		 WHERE id = $7`,
		p.Name, p.Description, p.OverheadPct, p.ProfitPct, p.TaxPct, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		stmts := []string{
			`DELETE FROM boq_lines WHERE project_id = $1`,
			`DELETE FROM boq_categories WHERE project_id = $1`,
			`DELETE FROM project_ahsp_entries WHERE analysis_id IN (SELECT id FROM project_analyses WHERE project_id = $1)`,
			`DELETE FROM project_analyses WHERE project_id = $1`,
			`DELETE FROM project_item_prices WHERE project_id = $1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

func (r *repository) SnapshotAmounts(ctx context.Context, projectID int64) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_id, amount FROM project_item_prices WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	amounts := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var itemID int64
		var amount decimal.Decimal
		if err := rows.Scan(&itemID, &amount); err != nil {
			return nil, err
		}
		amounts[itemID] = amount
	}
	return amounts, rows.Err()
}

func (r *repository) SnapshotPrices(ctx context.Context, projectID int64) ([]SnapshotPrice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, item_id, amount, batch_id
		 FROM project_item_prices WHERE project_id = $1 ORDER BY item_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []SnapshotPrice
	for rows.Next() {
		var sp SnapshotPrice
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.ItemID, &sp.Amount, &sp.BatchID); err != nil {
			return nil, err
		}
		prices = append(prices, sp)
	}
	return prices, rows.Err()
}

func (r *repository) UpdateSnapshotPrice(ctx context.Context, projectID, itemID int64, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO project_item_prices (project_id, item_id, amount, batch_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, item_id) DO UPDATE SET amount = EXCLUDED.amount`,
		projectID, itemID, amount, uuid.NewString(), time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d price for item %d: %w", projectID, itemID, shared.ErrNotFound)
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("project: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("project region reference: %w", shared.ErrValidation)
		}
	}
	return err
}
