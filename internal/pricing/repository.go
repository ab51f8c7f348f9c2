package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/shared"
)

type Repository interface {
	ListByRegion(ctx context.Context, regionID int64) ([]ItemPrice, error)
	ListByItem(ctx context.Context, regionID, itemID int64) ([]ItemPrice, error)
	Get(ctx context.Context, id int64) (ItemPrice, error)
	Create(ctx context.Context, price ItemPrice) (ItemPrice, error)
	Update(ctx context.Context, id int64, price ItemPrice) error
	Delete(ctx context.Context, id int64) error
	// EffectiveAmounts resolves the currently effective amount per item
	// for the region, applying the latest-effective-from policy in SQL.
	EffectiveAmounts(ctx context.Context, regionID int64, at time.Time) (map[int64]decimal.Decimal, error)
	// Overlaps reports pairs of active prices whose effective windows
	// intersect for the same (item, region). The nightly sweep logs them.
	Overlaps(ctx context.Context) ([]Overlap, error)
}

// Overlap is a pair of price rows competing for the same window.
type Overlap struct {
	ItemID   int64 `json:"item_id"`
	RegionID int64 `json:"region_id"`
	FirstID  int64 `json:"first_id"`
	SecondID int64 `json:"second_id"`
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const priceColumns = `id, item_id, region_id, amount, effective_from, effective_to, active`

func scanPrice(row pgx.Row) (ItemPrice, error) {
	var p ItemPrice
	err := row.Scan(&p.ID, &p.ItemID, &p.RegionID, &p.Amount, &p.EffectiveFrom, &p.EffectiveTo, &p.Active)
	return p, err
}

func (r *repository) ListByRegion(ctx context.Context, regionID int64) ([]ItemPrice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+priceColumns+` FROM item_prices WHERE region_id = $1 ORDER BY item_id, effective_from NULLS FIRST, id`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func (r *repository) ListByItem(ctx context.Context, regionID, itemID int64) ([]ItemPrice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+priceColumns+` FROM item_prices WHERE region_id = $1 AND item_id = $2 ORDER BY effective_from NULLS FIRST, id`,
		regionID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func collectPrices(rows pgx.Rows) ([]ItemPrice, error) {
	var prices []ItemPrice
	for rows.Next() {
		var p ItemPrice
		if err := rows.Scan(&p.ID, &p.ItemID, &p.RegionID, &p.Amount, &p.EffectiveFrom, &p.EffectiveTo, &p.Active); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (ItemPrice, error) {
	p, err := scanPrice(r.pool.QueryRow(ctx, `SELECT `+priceColumns+` FROM item_prices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemPrice{}, fmt.Errorf("item price %d: %w", id, shared.ErrNotFound)
		}
		return ItemPrice{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, price ItemPrice) (ItemPrice, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO item_prices (item_id, region_id, amount, effective_from, effective_to, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		price.ItemID, price.RegionID, price.Amount, price.EffectiveFrom, price.EffectiveTo, price.Active, now).
		Scan(&price.ID)
	if err != nil {
		return ItemPrice{}, mapPgError(err)
	}
	return price, nil
}

func (r *repository) Update(ctx context.Context, id int64, price ItemPrice) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE item_prices SET amount = $1, effective_from = $2, effective_to = $3, active = $4, updated_at = $5 WHERE id = $6`,
		price.Amount, price.EffectiveFrom, price.EffectiveTo, price.Active, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item price %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM item_prices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item price %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) EffectiveAmounts(ctx context.Context, regionID int64, at time.Time) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (item_id) item_id, amount
		FROM item_prices
		WHERE region_id = $1
		  AND active
		  AND (effective_from IS NULL OR effective_from <= $2)
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY item_id, effective_from DESC NULLS LAST, id DESC`, regionID, at)
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

func (r *repository) Overlaps(ctx context.Context) ([]Overlap, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.item_id, a.region_id, a.id, b.id
		FROM item_prices a
		JOIN item_prices b
		  ON a.item_id = b.item_id
		 AND a.region_id = b.region_id
		 AND a.id < b.id
		WHERE a.active AND b.active
		  AND (a.effective_from IS NULL OR b.effective_to IS NULL OR a.effective_from <= b.effective_to)
		  AND (b.effective_from IS NULL OR a.effective_to IS NULL OR b.effective_from <= a.effective_to)
		ORDER BY a.item_id, a.region_id, a.id, b.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overlaps []Overlap
	for rows.Next() {
		var o Overlap
		if err := rows.Scan(&o.ItemID, &o.RegionID, &o.FirstID, &o.SecondID); err != nil {
			return nil, err
		}
		overlaps = append(overlaps, o)
	}
	return overlaps, rows.Err()
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("item price: %w", shared.ErrDuplicate)
		case "23503":
			return fmt.Errorf("item or region reference: %w", shared.ErrValidation)
		}
	}
	return err
}
