package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/temple-erp/temple-pos/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL on the caller's transaction.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) GetBOM(ctx context.Context, saleItemID int64) ([]BOMLine, error) {
	rows, err := r.db.Query(ctx, `SELECT sale_item_id, product_id, qty
FROM sale_item_boms WHERE sale_item_id=$1 ORDER BY id`, saleItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []BOMLine
	for rows.Next() {
		var line BOMLine
		var qty pgtype.Numeric
		if err := rows.Scan(&line.SaleItemID, &line.ProductID, &qty); err != nil {
			return nil, err
		}
		line.Qty = db.Decimal(qty)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *Repository) GetBalanceForUpdate(ctx context.Context, productID int64) (Balance, error) {
	bal := Balance{ProductID: productID}
	var qty, avgCost pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT qty, avg_cost, updated_at FROM stock_balances
WHERE product_id=$1 FOR UPDATE`, productID).Scan(&qty, &avgCost, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bal, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	bal.Qty = db.Decimal(qty)
	bal.AvgCost = db.Decimal(avgCost)
	return bal, nil
}

func (r *Repository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.db.Exec(ctx, `INSERT INTO stock_balances (product_id, qty, avg_cost, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id) DO UPDATE SET qty=EXCLUDED.qty, avg_cost=EXCLUDED.avg_cost, updated_at=EXCLUDED.updated_at`,
		balance.ProductID, db.Numeric(balance.Qty), db.Numeric(balance.AvgCost), balance.UpdatedAt)
	return err
}

func (r *Repository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO stock_movements
(ref_booking_id, booking_item_id, product_id, movement_type, qty, unit_cost, balance_qty, balance_cost, note, reversal_of, posted_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		m.BookingID, nullID(m.BookingItemID), m.ProductID, string(m.Type),
		db.Numeric(m.Qty), db.Numeric(m.UnitCost), db.Numeric(m.BalanceQty), db.Numeric(m.BalanceCost),
		m.Note, nullID(m.ReversalOf), m.PostedAt, nullID(m.CreatedBy)).Scan(&id)
	return id, err
}

func (r *Repository) ListOpenMovements(ctx context.Context, bookingID int64) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `SELECT id, ref_booking_id, COALESCE(booking_item_id, 0), product_id, movement_type,
       qty, unit_cost, balance_qty, balance_cost, note, posted_at
FROM stock_movements
WHERE ref_booking_id=$1 AND movement_type='OUT' AND reversed_by IS NULL
ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var typ string
		var qty, unitCost, balQty, balanceCost pgtype.Numeric
		if err := rows.Scan(&m.ID, &m.BookingID, &m.BookingItemID, &m.ProductID, &typ,
			&qty, &unitCost, &balQty, &balanceCost, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		m.Qty = db.Decimal(qty)
		m.UnitCost = db.Decimal(unitCost)
		m.BalanceQty = db.Decimal(balQty)
		m.BalanceCost = db.Decimal(balanceCost)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *Repository) MarkReversed(ctx context.Context, movementID, reversalID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE stock_movements SET reversed_by=$2 WHERE id=$1`, movementID, reversalID)
	return err
}

func (r *Repository) SetInventoryMigrated(ctx context.Context, bookingID int64, migrated bool) error {
	flag := 0
	if migrated {
		flag = 1
	}
	_, err := r.db.Exec(ctx, `UPDATE bookings SET inventory_migration=$2 WHERE id=$1`, bookingID, flag)
	return err
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
