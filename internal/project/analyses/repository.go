package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/platform/db"
	"github.com/rencana-app/rencana/internal/shared"
)

type Repository interface {
	ListByProject(ctx context.Context, projectID int64) ([]ProjectAnalysis, error)
	Get(ctx context.Context, id int64) (ProjectAnalysis, error)
	// AnalysisWithEntries satisfies ahsp.AnalysisLoader so derived BOQ
	// lines resolve against project-local compositions.
	AnalysisWithEntries(ctx context.Context, id int64) (ahsp.Analysis, error)
	CreateCustom(ctx context.Context, a ProjectAnalysis) (ProjectAnalysis, error)
	// CopyFromMaster copies the master analysis head and composition
	// into the project in one transaction.
	CopyFromMaster(ctx context.Context, projectID, masterID int64) (ProjectAnalysis, error)
	// SyncFromMaster re-copies the master composition over a frozen copy.
	SyncFromMaster(ctx context.Context, id int64) error
	ReplaceEntries(ctx context.Context, id int64, entries []ahsp.CompositionEntry) error
	Delete(ctx context.Context, id int64) error
	// LineReferences counts BOQ lines deriving from the analysis.
	LineReferences(ctx context.Context, id int64) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const analysisColumns = `a.id, a.project_id, a.source_id, a.code, a.name, a.unit_id, u.code`

func (r *repository) ListByProject(ctx context.Context, projectID int64) ([]ProjectAnalysis, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM project_analyses a
		 JOIN units u ON u.id = a.unit_id
		 WHERE a.project_id = $1 ORDER BY a.code`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectAnalysis
	for rows.Next() {
		var a ProjectAnalysis
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.SourceID, &a.Code, &a.Name, &a.UnitID, &a.UnitCode); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (ProjectAnalysis, error) {
	var a ProjectAnalysis
	err := r.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM project_analyses a
		 JOIN units u ON u.id = a.unit_id WHERE a.id = $1`, id).
		Scan(&a.ID, &a.ProjectID, &a.SourceID, &a.Code, &a.Name, &a.UnitID, &a.UnitCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectAnalysis{}, fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
		}
		return ProjectAnalysis{}, err
	}

	a.Entries, err = r.entries(ctx, id)
	return a, err
}

func (r *repository) AnalysisWithEntries(ctx context.Context, id int64) (ahsp.Analysis, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return ahsp.Analysis{}, err
	}
	return ahsp.Analysis{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		UnitID:   a.UnitID,
		UnitCode: a.UnitCode,
		Entries:  a.Entries,
	}, nil
}

func (r *repository) entries(ctx context.Context, analysisID int64) ([]ahsp.CompositionEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, analysis_id, item_id, category, coefficient
		 FROM project_ahsp_entries WHERE analysis_id = $1 ORDER BY id`, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ahsp.CompositionEntry
	for rows.Next() {
		var e ahsp.CompositionEntry
		if err := rows.Scan(&e.ID, &e.AnalysisID, &e.ItemID, &e.Category, &e.Coefficient); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) CreateCustom(ctx context.Context, a ProjectAnalysis) (ProjectAnalysis, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO project_analyses (project_id, source_id, code, name, unit_id, created_at, updated_at)
		 VALUES ($1, NULL, $2, $3, $4, $5, $5) RETURNING id`,
		a.ProjectID, a.Code, a.Name, a.UnitID, now).Scan(&a.ID)
	if err != nil {
		return ProjectAnalysis{}, mapPgError(err)
	}
	a.SourceID = nil
	return a, nil
}

func (r *repository) CopyFromMaster(ctx context.Context, projectID, masterID int64) (ProjectAnalysis, error) {
	var a ProjectAnalysis
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		err := tx.QueryRow(ctx,
			`INSERT INTO project_analyses (project_id, source_id, code, name, unit_id, created_at, updated_at)
			 SELECT $1, m.id, m.code, m.name, m.unit_id, $2, $2 FROM ahsp_analyses m WHERE m.id = $3
			 RETURNING id, project_id, source_id, code, name, unit_id`,
			projectID, now, masterID).
			Scan(&a.ID, &a.ProjectID, &a.SourceID, &a.Code, &a.Name, &a.UnitID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("master analysis %d: %w", masterID, shared.ErrNotFound)
			}
			return mapPgError(err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO project_ahsp_entries (analysis_id, item_id, category, coefficient, created_at, updated_at)
			 SELECT $1, item_id, category, coefficient, $2, $2 FROM ahsp_entries WHERE analysis_id = $3`,
			a.ID, now, masterID)
		return err
	})
	if err != nil {
		return ProjectAnalysis{}, err
	}
	return a, nil
}

func (r *repository) SyncFromMaster(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var sourceID *int64
		err := tx.QueryRow(ctx, `SELECT source_id FROM project_analyses WHERE id = $1`, id).Scan(&sourceID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
			}
			return err
		}
		if sourceID == nil {
			return fmt.Errorf("%w: custom analysis has no master source", shared.ErrValidation)
		}

		now := time.Now()
		tag, err := tx.Exec(ctx,
			`UPDATE project_analyses SET (code, name, unit_id, updated_at) =
			 (SELECT m.code, m.name, m.unit_id, $1::timestamptz FROM ahsp_analyses m WHERE m.id = $2)
			 WHERE id = $3`, now, *sourceID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("master analysis %d: %w", *sourceID, shared.ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM project_ahsp_entries WHERE analysis_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO project_ahsp_entries (analysis_id, item_id, category, coefficient, created_at, updated_at)
			 SELECT $1, item_id, category, coefficient, $2, $2 FROM ahsp_entries WHERE analysis_id = $3`,
			id, now, *sourceID)
		return err
	})
}

func (r *repository) ReplaceEntries(ctx context.Context, id int64, entries []ahsp.CompositionEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM project_analyses WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM project_ahsp_entries WHERE analysis_id = $1`, id); err != nil {
			return err
		}
		now := time.Now()
		for _, e := range entries {
			_, err := tx.Exec(ctx,
				`INSERT INTO project_ahsp_entries (analysis_id, item_id, category, coefficient, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $5)`,
				id, e.ItemID, e.Category, e.Coefficient, now)
			if err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM project_ahsp_entries WHERE analysis_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM project_analyses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

func (r *repository) LineReferences(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM boq_lines WHERE analysis_id = $1`, id).Scan(&count)
	return count, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("project analysis code: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("project analysis reference: %w", shared.ErrValidation)
		}
	}
	return err
}
