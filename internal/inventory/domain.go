package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementOut consumes stock for a sale.
	MovementOut MovementType = "OUT"
	// MovementIn returns stock, used when a sale is reversed.
	MovementIn MovementType = "IN"
)

// Booking identifies the sales booking a movement belongs to.
type Booking struct {
	ID     int64
	Number string
	Date   time.Time
}

// Item is one sold line handed to the coordinator.
type Item struct {
	BookingItemID int64
	SaleItemID    int64
	Name          string
	Quantity      int64
}

// BOMLine is one component consumed per unit of a sale item.
type BOMLine struct {
	SaleItemID int64
	ProductID  int64
	Qty        decimal.Decimal
}

// Balance summarises stock per product.
type Balance struct {
	ProductID int64
	Qty       decimal.Decimal
	AvgCost   decimal.Decimal
	UpdatedAt time.Time
}

// Movement is a posted stock movement.
type Movement struct {
	ID            int64
	BookingID     int64
	BookingItemID int64
	ProductID     int64
	Type          MovementType
	Qty           decimal.Decimal
	UnitCost      decimal.Decimal
	BalanceQty    decimal.Decimal
	BalanceCost   decimal.Decimal
	Note          string
	ReversalOf    int64
	ReversedBy    int64
	PostedAt      time.Time
	CreatedBy     int64
}

// Result reports what the coordinator did.
type Result struct {
	Message   string
	Movements []Movement
}

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrBalanceNotFound indicates missing balance row.
var ErrBalanceNotFound = errors.New("inventory: balance not found")

// Error describes which item and product a movement failed on.
type Error struct {
	Op         string
	SaleItemID int64
	ProductID  int64
	Err        error
}

func (e *Error) Error() string {
	if e.ProductID == 0 {
		return fmt.Sprintf("%s sale item %d: %v", e.Op, e.SaleItemID, e.Err)
	}
	return fmt.Sprintf("%s sale item %d product %d: %v", e.Op, e.SaleItemID, e.ProductID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
