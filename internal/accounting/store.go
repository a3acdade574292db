package accounting

import (
	"context"

	"github.com/temple-erp/temple-pos/internal/sequence"
)

// SaleReader exposes the booking side of a posting. It is implemented by
// the sales repository on the same transaction as the LedgerStore.
type SaleReader interface {
	LoadSale(ctx context.Context, bookingID int64) (Sale, error)
	MarkAccountMigrated(ctx context.Context, bookingID int64) error
}

// LedgerStore persists chart of accounts and journal rows.
type LedgerStore interface {
	sequence.Store
	GetPaymentMode(ctx context.Context, id int64) (PaymentMode, error)
	SaleItemLedger(ctx context.Context, saleItemID int64) (int64, bool, error)
	Settings(ctx context.Context, keys ...string) (map[string]string, error)
	LockGroup(ctx context.Context, code string) error
	UpsertGroup(ctx context.Context, group Group) (int64, error)
	FindLedger(ctx context.Context, groupID int64, name string) (int64, bool, error)
	MaxRightCode(ctx context.Context, groupID int64, leftCode string) (string, bool, error)
	UpsertLedger(ctx context.Context, ledger Ledger) (int64, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	InsertEntryItems(ctx context.Context, entryID int64, items []EntryItem) error
}

// TxStore is everything the poster needs inside one unit of work.
type TxStore interface {
	SaleReader
	LedgerStore
}

type txStore struct {
	SaleReader
	LedgerStore
}

// Compose joins a sale reader and a ledger store bound to the same transaction.
func Compose(sales SaleReader, ledgers LedgerStore) TxStore {
	return txStore{SaleReader: sales, LedgerStore: ledgers}
}
