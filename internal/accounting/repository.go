package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/temple-erp/temple-pos/internal/platform/db"
	"github.com/temple-erp/temple-pos/internal/sequence"
	"github.com/temple-erp/temple-pos/internal/shared"
)

// Store implements LedgerStore on PostgreSQL.
type Store struct {
	*sequence.PGStore
	db db.DBTX
}

// NewStore constructs a Store bound to conn, normally the caller's pgx.Tx.
func NewStore(conn db.DBTX) *Store {
	return &Store{PGStore: sequence.NewStore(conn), db: conn}
}

func (s *Store) GetPaymentMode(ctx context.Context, id int64) (PaymentMode, error) {
	var mode PaymentMode
	err := s.db.QueryRow(ctx, `SELECT id, name, ledger_id FROM payment_modes WHERE id=$1`, id).
		Scan(&mode.ID, &mode.Name, &mode.LedgerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentMode{}, ErrPaymentModeNotFound
		}
		return PaymentMode{}, err
	}
	return mode, nil
}

func (s *Store) SaleItemLedger(ctx context.Context, saleItemID int64) (int64, bool, error) {
	var ledgerID *int64
	err := s.db.QueryRow(ctx, `SELECT ledger_id FROM sale_items WHERE id=$1`, saleItemID).Scan(&ledgerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if ledgerID == nil {
		return 0, false, nil
	}
	return *ledgerID, true, nil
}

func (s *Store) Settings(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM booking_settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	settings := make(map[string]string, len(keys))
	for rows.Next() {
		var key string
		var value *string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if value != nil {
			settings[key] = *value
		}
	}
	return settings, rows.Err()
}

func (s *Store) LockGroup(ctx context.Context, code string) error {
	return db.AdvisoryXactLock(ctx, s.db, shared.LedgerGroupLockKey(code))
}

func (s *Store) UpsertGroup(ctx context.Context, group Group) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO account_groups (parent_id, name, code, added_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
RETURNING id`, group.ParentID, group.Name, group.Code, nullInt(group.AddedBy)).Scan(&id)
	return id, err
}

func (s *Store) FindLedger(ctx context.Context, groupID int64, name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM ledgers WHERE group_id=$1 AND name=$2`, groupID, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) MaxRightCode(ctx context.Context, groupID int64, leftCode string) (string, bool, error) {
	var code string
	err := s.db.QueryRow(ctx, `SELECT right_code FROM ledgers WHERE group_id=$1 AND left_code=$2 ORDER BY right_code DESC LIMIT 1`, groupID, leftCode).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}

func (s *Store) UpsertLedger(ctx context.Context, ledger Ledger) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO ledgers (group_id, name, left_code, right_code, type, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
ON CONFLICT (group_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, ledger.GroupID, ledger.Name, ledger.LeftCode, ledger.RightCode, ledger.Type).Scan(&id)
	return id, err
}

func (s *Store) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO entries (entrytype_id, number, entry_code, date, dr_total, cr_total, narration, inv_id, inv_type, source_ref, created_by, user_id, created_at, updated_at)
VALUES ($1,$2,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10,NOW(),NOW())
RETURNING id`,
		entry.EntryTypeID, entry.Code, entry.Date, db.Numeric(entry.DrTotal), db.Numeric(entry.CrTotal),
		entry.Narration, entry.InvID, entry.InvType, entry.SourceRef, nullInt(entry.CreatedBy)).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_entries_source_ref") {
			return 0, ErrAlreadyPosted
		}
		return 0, fmt.Errorf("accounting: insert entry %s: %w", entry.Code, err)
	}
	return id, nil
}

func (s *Store) InsertEntryItems(ctx context.Context, entryID int64, items []EntryItem) error {
	for _, item := range items {
		if _, err := s.db.Exec(ctx, `INSERT INTO entryitems (entry_id, ledger_id, amount, details, dc, is_discount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())`, entryID, item.LedgerID, db.Numeric(item.Amount), item.Details, string(item.DC), item.IsDiscount); err != nil {
			return fmt.Errorf("accounting: insert entry item: %w", err)
		}
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
