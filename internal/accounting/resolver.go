package accounting

import (
	"context"
	"fmt"
	"strconv"
)

const rightCodeWidth = 4

// Resolver maps sold items to their income ledgers.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveCreditLedger returns the sale item's configured ledger, falling back
// to the shared Sales Income ledger.
func (r *Resolver) ResolveCreditLedger(ctx context.Context, store LedgerStore, saleItemID int64, actorID int64) (int64, error) {
	if saleItemID > 0 {
		ledgerID, ok, err := store.SaleItemLedger(ctx, saleItemID)
		if err != nil {
			return 0, fmt.Errorf("accounting: sale item %d ledger: %w", saleItemID, err)
		}
		if ok && ledgerID > 0 {
			return ledgerID, nil
		}
	}
	return r.SalesIncomeLedger(ctx, store, actorID)
}

// SalesIncomeLedger returns the default income ledger, creating the Incomes
// group and the ledger on first use. Both writes are upserts on their natural
// keys and run under the group lock, so concurrent callers converge on the
// same rows.
func (r *Resolver) SalesIncomeLedger(ctx context.Context, store LedgerStore, actorID int64) (int64, error) {
	if err := store.LockGroup(ctx, IncomesGroupCode); err != nil {
		return 0, err
	}
	groupID, err := store.UpsertGroup(ctx, Group{ParentID: 0, Name: IncomesGroupName, Code: IncomesGroupCode, AddedBy: actorID})
	if err != nil {
		return 0, fmt.Errorf("accounting: upsert incomes group: %w", err)
	}
	if id, ok, err := store.FindLedger(ctx, groupID, SalesIncomeLedgerName); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}
	last, found, err := store.MaxRightCode(ctx, groupID, IncomesGroupCode)
	if err != nil {
		return 0, err
	}
	rightCode, err := NextRightCode(last, found)
	if err != nil {
		return 0, err
	}
	id, err := store.UpsertLedger(ctx, Ledger{
		GroupID:   groupID,
		Name:      SalesIncomeLedgerName,
		LeftCode:  IncomesGroupCode,
		RightCode: rightCode,
		Type:      0,
	})
	if err != nil {
		return 0, fmt.Errorf("accounting: upsert sales income ledger: %w", err)
	}
	return id, nil
}

// NextRightCode increments the highest right code of a group.
func NextRightCode(last string, found bool) (string, error) {
	if !found || last == "" {
		return fmt.Sprintf("%0*d", rightCodeWidth, 1), nil
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		return "", fmt.Errorf("accounting: right code %q: %w", last, err)
	}
	return fmt.Sprintf("%0*d", rightCodeWidth, n+1), nil
}
