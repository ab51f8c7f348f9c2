package ahsp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Analysis, int, error)
	Get(ctx context.Context, id int64) (Analysis, error)
	AnalysisWithEntries(ctx context.Context, id int64) (Analysis, error)
	Create(ctx context.Context, analysis Analysis) (Analysis, error)
	Update(ctx context.Context, id int64, analysis Analysis) error
	Delete(ctx context.Context, id int64) error
	// ReplaceEntries swaps the whole composition in one transaction so a
	// concurrent resolve never sees a half-replaced analysis.
	ReplaceEntries(ctx context.Context, analysisID int64, entries []CompositionEntry) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Analysis, int, error) {
	query := `SELECT a.id, a.code, a.name, a.unit_id, u.code
		FROM ahsp_analyses a JOIN units u ON u.id = a.unit_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM ahsp_analyses a WHERE 1=1`
	args := []interface{}{}
	countArgs := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (a.name ILIKE $` + strconv.Itoa(argCount) + ` OR a.code ILIKE $` + strconv.Itoa(argCount) + `)`
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
	if filters.SortBy == "name" {
		query += " ORDER BY a.name " + dir
	} else {
		query += " ORDER BY a.code " + dir
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

	var analyses []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.UnitID, &a.UnitCode); err != nil {
			return nil, 0, err
		}
		analyses = append(analyses, a)
	}
	return analyses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Analysis, error) {
	var a Analysis
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.code, a.name, a.unit_id, u.code
		 FROM ahsp_analyses a JOIN units u ON u.id = a.unit_id WHERE a.id = $1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.UnitID, &a.UnitCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Analysis{}, fmt.Errorf("analysis %d: %w", id, shared.ErrNotFound)
		}
		return Analysis{}, err
	}
	return a, nil
}

func (r *repository) AnalysisWithEntries(ctx context.Context, id int64) (Analysis, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return Analysis{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, analysis_id, item_id, category, coefficient
		 FROM ahsp_entries WHERE analysis_id = $1 ORDER BY id`, id)
	if err != nil {
		return Analysis{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var e CompositionEntry
		if err := rows.Scan(&e.ID, &e.AnalysisID, &e.ItemID, &e.Category, &e.Coefficient); err != nil {
			return Analysis{}, err
		}
		a.Entries = append(a.Entries, e)
	}
	return a, rows.Err()
}

func (r *repository) Create(ctx context.Context, analysis Analysis) (Analysis, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ahsp_analyses (code, name, unit_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		analysis.Code, analysis.Name, analysis.UnitID, now).Scan(&analysis.ID)
	if err != nil {
		return Analysis{}, mapPgError(err)
	}
	return analysis, nil
}

func (r *repository) Update(ctx context.Context, id int64, analysis Analysis) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ahsp_analyses SET code = $1, name = $2, unit_id = $3, updated_at = $4 WHERE id = $5`,
		analysis.Code, analysis.Name, analysis.UnitID, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("analysis %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ahsp_entries WHERE analysis_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM ahsp_analyses WHERE id = $1`, id)
		if err != nil {
			return mapPgError(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("analysis %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

func (r *repository) ReplaceEntries(ctx context.Context, analysisID int64, entries []CompositionEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM ahsp_analyses WHERE id = $1)`, analysisID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("analysis %d: %w", analysisID, shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ahsp_entries WHERE analysis_id = $1`, analysisID); err != nil {
			return err
		}
		now := time.Now()
		for _, e := range entries {
			_, err := tx.Exec(ctx,
				`INSERT INTO ahsp_entries (analysis_id, item_id, category, coefficient, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $5)`,
				analysisID, e.ItemID, e.Category, e.Coefficient, now)
			if err != nil {
				return mapPgError(err)
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
			return fmt.Errorf("analysis code: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("analysis reference: %w", shared.ErrValidation)
		}
	}
	return err
}
