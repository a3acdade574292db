package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/temple-erp/temple-pos/internal/shared"
)

type memoryRepo struct {
	boms      map[int64][]BOMLine
	balances  map[int64]Balance
	movements []Movement
	migrated  map[int64]bool
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		boms:     make(map[int64][]BOMLine),
		balances: make(map[int64]Balance),
		migrated: make(map[int64]bool),
	}
}

func (r *memoryRepo) GetBOM(ctx context.Context, saleItemID int64) ([]BOMLine, error) {
	return r.boms[saleItemID], nil
}

func (r *memoryRepo) GetBalanceForUpdate(ctx context.Context, productID int64) (Balance, error) {
	if bal, ok := r.balances[productID]; ok {
		return bal, nil
	}
	return Balance{ProductID: productID}, ErrBalanceNotFound
}

func (r *memoryRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	r.balances[balance.ProductID] = balance
	return nil
}

func (r *memoryRepo) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	r.nextID++
	movement.ID = r.nextID
	r.movements = append(r.movements, movement)
	return movement.ID, nil
}

func (r *memoryRepo) ListOpenMovements(ctx context.Context, bookingID int64) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.BookingID == bookingID && m.Type == MovementOut && m.ReversedBy == 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) MarkReversed(ctx context.Context, movementID, reversalID int64) error {
	for i := range r.movements {
		if r.movements[i].ID == movementID {
			r.movements[i].ReversedBy = reversalID
			return nil
		}
	}
	return errors.New("movement not found")
}

func (r *memoryRepo) SetInventoryMigrated(ctx context.Context, bookingID int64, migrated bool) error {
	r.migrated[bookingID] = migrated
	return nil
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	testBooking = Booking{ID: 10, Number: "SLBD2026101500000001", Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}
	testRC      = shared.RequestContext{Actor: shared.Actor{ID: 3}, Now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
)

func TestProcessConsumesBOMComponents(t *testing.T) {
	repo := newMemoryRepo()
	repo.boms[1] = []BOMLine{{SaleItemID: 1, ProductID: 100, Qty: qty("2")}, {SaleItemID: 1, ProductID: 101, Qty: qty("0.5")}}
	repo.balances[100] = Balance{ProductID: 100, Qty: qty("10"), AvgCost: qty("1.50")}
	repo.balances[101] = Balance{ProductID: 101, Qty: qty("4"), AvgCost: qty("8")}
	coord := NewCoordinator(Config{}, nil)

	result, err := coord.Process(context.Background(), repo, testRC, testBooking, []Item{{BookingItemID: 55, SaleItemID: 1, Name: "Lamp set", Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, result.Movements, 2)
	require.NotEmpty(t, result.Message)

	require.True(t, repo.balances[100].Qty.Equal(qty("4")))
	require.True(t, repo.balances[100].AvgCost.Equal(qty("1.50")))
	require.True(t, repo.balances[101].Qty.Equal(qty("2.5")))
	require.True(t, result.Movements[0].Qty.Equal(qty("-6")))
	require.True(t, result.Movements[0].UnitCost.Equal(qty("1.50")))
	require.Equal(t, int64(55), result.Movements[0].BookingItemID)
	require.Equal(t, int64(3), result.Movements[0].CreatedBy)
	require.Equal(t, testRC.Now, result.Movements[0].PostedAt)
	require.True(t, repo.migrated[testBooking.ID])
}

func TestProcessWithoutBOMLeavesFlagClear(t *testing.T) {
	repo := newMemoryRepo()
	coord := NewCoordinator(Config{}, nil)

	result, err := coord.Process(context.Background(), repo, testRC, testBooking, []Item{{SaleItemID: 9, Quantity: 1}})
	require.NoError(t, err)
	require.Empty(t, result.Movements)
	require.False(t, repo.migrated[testBooking.ID])
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.boms[1] = []BOMLine{{SaleItemID: 1, ProductID: 100, Qty: qty("1")}}
	repo.balances[100] = Balance{ProductID: 100, Qty: qty("1"), AvgCost: qty("2")}

	_, err := NewCoordinator(Config{}, nil).Process(context.Background(), repo, testRC, testBooking, []Item{{SaleItemID: 1, Quantity: 2}})
	require.ErrorIs(t, err, ErrNegativeStock)
	var invErr *Error
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, int64(100), invErr.ProductID)
	require.Equal(t, "process", invErr.Op)

	repo = newMemoryRepo()
	repo.boms[1] = []BOMLine{{SaleItemID: 1, ProductID: 100, Qty: qty("1")}}
	_, err = NewCoordinator(Config{AllowNegativeStock: true}, nil).Process(context.Background(), repo, testRC, testBooking, []Item{{SaleItemID: 1, Quantity: 2}})
	require.NoError(t, err)
	require.True(t, repo.balances[100].Qty.Equal(qty("-2")))
}

func TestProcessRejectsZeroQuantity(t *testing.T) {
	repo := newMemoryRepo()
	_, err := NewCoordinator(Config{}, nil).Process(context.Background(), repo, testRC, testBooking, []Item{{SaleItemID: 1, Quantity: 0}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReverseRestoresStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.boms[1] = []BOMLine{{SaleItemID: 1, ProductID: 100, Qty: qty("1")}}
	repo.balances[100] = Balance{ProductID: 100, Qty: qty("10"), AvgCost: qty("3")}
	coord := NewCoordinator(Config{}, nil)
	ctx := context.Background()

	_, err := coord.Process(ctx, repo, testRC, testBooking, []Item{{SaleItemID: 1, Quantity: 4}})
	require.NoError(t, err)
	require.True(t, repo.balances[100].Qty.Equal(qty("6")))

	result, err := coord.Reverse(ctx, repo, testRC, testBooking)
	require.NoError(t, err)
	require.Len(t, result.Movements, 1)
	require.Equal(t, MovementIn, result.Movements[0].Type)
	require.Equal(t, int64(1), result.Movements[0].ReversalOf)
	require.True(t, repo.balances[100].Qty.Equal(qty("10")))
	require.True(t, repo.balances[100].AvgCost.Equal(qty("3")))
	require.False(t, repo.migrated[testBooking.ID])

	result, err = coord.Reverse(ctx, repo, testRC, testBooking)
	require.NoError(t, err)
	require.Empty(t, result.Movements)
	require.True(t, repo.balances[100].Qty.Equal(qty("10")))
}

func TestAverageCostOnReturn(t *testing.T) {
	repo := newMemoryRepo()
	repo.boms[1] = []BOMLine{{SaleItemID: 1, ProductID: 100, Qty: qty("5")}}
	repo.balances[100] = Balance{ProductID: 100, Qty: qty("5"), AvgCost: qty("100000")}
	coord := NewCoordinator(Config{}, nil)
	ctx := context.Background()

	_, err := coord.Process(ctx, repo, testRC, testBooking, []Item{{SaleItemID: 1, Quantity: 1}})
	require.NoError(t, err)
	require.True(t, repo.balances[100].Qty.IsZero())
	require.True(t, repo.balances[100].AvgCost.IsZero())

	_, err = coord.Reverse(ctx, repo, testRC, testBooking)
	require.NoError(t, err)
	require.True(t, repo.balances[100].Qty.Equal(qty("5")))
	require.True(t, repo.balances[100].AvgCost.Equal(qty("100000")))
}
