package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/temple-erp/temple-pos/internal/shared"
)

var qtyEpsilon = decimal.New(1, -4)

// Store is the transactional storage used by the coordinator. It is bound to
// the caller's unit of work.
type Store interface {
	GetBOM(ctx context.Context, saleItemID int64) ([]BOMLine, error)
	GetBalanceForUpdate(ctx context.Context, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	ListOpenMovements(ctx context.Context, bookingID int64) ([]Movement, error)
	MarkReversed(ctx context.Context, movementID, reversalID int64) error
	SetInventoryMigrated(ctx context.Context, bookingID int64, migrated bool) error
}

// Coordinator deducts and restores BOM component stock for sales bookings.
type Coordinator struct {
	allowNeg bool
	logger   *slog.Logger
}

// Config groups optional settings.
type Config struct {
	AllowNegativeStock bool
}

// NewCoordinator builds Coordinator.
func NewCoordinator(cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{allowNeg: cfg.AllowNegativeStock, logger: logger}
}

// Process posts one outbound movement per BOM component of every item.
// Items without a BOM are not stock tracked and are skipped.
func (c *Coordinator) Process(ctx context.Context, store Store, rc shared.RequestContext, booking Booking, items []Item) (Result, error) {
	now := rc.Clock(time.Now).UTC()
	var movements []Movement
	for _, item := range items {
		if item.Quantity < 1 {
			return Result{}, &Error{Op: "process", SaleItemID: item.SaleItemID, Err: ErrInvalidQuantity}
		}
		bom, err := store.GetBOM(ctx, item.SaleItemID)
		if err != nil {
			return Result{}, &Error{Op: "process", SaleItemID: item.SaleItemID, Err: err}
		}
		for _, line := range bom {
			qty := line.Qty.Mul(decimal.NewFromInt(item.Quantity))
			if !qty.IsPositive() {
				continue
			}
			movement, err := c.postMovement(ctx, store, movementParams{
				booking:       booking,
				bookingItemID: item.BookingItemID,
				productID:     line.ProductID,
				qtyChange:     qty.Neg(),
				typ:           MovementOut,
				note:          fmt.Sprintf("Sale %s: %s", booking.Number, item.Name),
				actorID:       rc.Actor.ID,
				at:            now,
			})
			if err != nil {
				return Result{}, &Error{Op: "process", SaleItemID: item.SaleItemID, ProductID: line.ProductID, Err: err}
			}
			movements = append(movements, movement)
		}
	}
	if len(movements) == 0 {
		return Result{Message: "No stock tracked items in sales order"}, nil
	}
	if err := store.SetInventoryMigrated(ctx, booking.ID, true); err != nil {
		return Result{}, err
	}
	c.logger.Info("inventory migrated",
		slog.Int64("booking_id", booking.ID),
		slog.String("booking_number", booking.Number),
		slog.Int("movements", len(movements)))
	return Result{Message: fmt.Sprintf("Inventory updated: %d movements posted", len(movements)), Movements: movements}, nil
}

// Reverse returns the stock of every unreversed outbound movement of the
// booking at the cost it left with, then clears the migration flag.
func (c *Coordinator) Reverse(ctx context.Context, store Store, rc shared.RequestContext, booking Booking) (Result, error) {
	now := rc.Clock(time.Now).UTC()
	open, err := store.ListOpenMovements(ctx, booking.ID)
	if err != nil {
		return Result{}, err
	}
	movements := make([]Movement, 0, len(open))
	for _, original := range open {
		reversal, err := c.postMovement(ctx, store, movementParams{
			booking:       booking,
			bookingItemID: original.BookingItemID,
			productID:     original.ProductID,
			qtyChange:     original.Qty.Abs(),
			unitCost:      original.UnitCost,
			typ:           MovementIn,
			note:          fmt.Sprintf("Cancel %s", booking.Number),
			actorID:       rc.Actor.ID,
			reversalOf:    original.ID,
			at:            now,
		})
		if err != nil {
			return Result{}, &Error{Op: "reverse", ProductID: original.ProductID, Err: err}
		}
		if err := store.MarkReversed(ctx, original.ID, reversal.ID); err != nil {
			return Result{}, err
		}
		movements = append(movements, reversal)
	}
	if err := store.SetInventoryMigrated(ctx, booking.ID, false); err != nil {
		return Result{}, err
	}
	c.logger.Info("inventory reversed",
		slog.Int64("booking_id", booking.ID),
		slog.String("booking_number", booking.Number),
		slog.Int("movements", len(movements)))
	return Result{Message: fmt.Sprintf("Inventory reversed: %d movements posted", len(movements)), Movements: movements}, nil
}

type movementParams struct {
	booking       Booking
	bookingItemID int64
	productID     int64
	qtyChange     decimal.Decimal
	unitCost      decimal.Decimal
	typ           MovementType
	note          string
	actorID       int64
	reversalOf    int64
	at            time.Time
}

func (c *Coordinator) postMovement(ctx context.Context, store Store, params movementParams) (Movement, error) {
	if params.qtyChange.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	balance, err := store.GetBalanceForUpdate(ctx, params.productID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Movement{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{ProductID: params.productID}
	}
	qtyChange := params.qtyChange
	newQty := balance.Qty.Add(qtyChange)
	if !c.allowNeg && newQty.LessThan(qtyEpsilon.Neg()) {
		return Movement{}, ErrNegativeStock
	}
	var unitCost, newAvg decimal.Decimal
	if qtyChange.IsPositive() {
		unitCost = params.unitCost
		totalCost := balance.Qty.Mul(balance.AvgCost).Add(qtyChange.Mul(unitCost))
		if !newQty.IsZero() {
			newAvg = totalCost.DivRound(newQty, 4)
		}
	} else {
		unitCost = balance.AvgCost
		if newQty.Abs().LessThan(qtyEpsilon) {
			newQty = decimal.Zero
		}
		if newQty.IsPositive() {
			newAvg = balance.AvgCost
		}
	}
	movement := Movement{
		BookingID:     params.booking.ID,
		BookingItemID: params.bookingItemID,
		ProductID:     params.productID,
		Type:          params.typ,
		Qty:           qtyChange,
		UnitCost:      unitCost,
		BalanceQty:    newQty,
		BalanceCost:   newAvg,
		Note:          params.note,
		ReversalOf:    params.reversalOf,
		PostedAt:      params.at,
		CreatedBy:     params.actorID,
	}
	id, err := store.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id
	balance.Qty = newQty
	balance.AvgCost = newAvg
	balance.UpdatedAt = params.at
	if err := store.UpsertBalance(ctx, balance); err != nil {
		return Movement{}, err
	}
	return movement, nil
}
