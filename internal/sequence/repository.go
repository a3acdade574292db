package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/temple-erp/temple-pos/internal/platform/db"
	"github.com/temple-erp/temple-pos/internal/shared"
)

var lastCodeQueries = map[Source]string{
	SourceBookings: `SELECT booking_number FROM bookings WHERE booking_number LIKE $1 ORDER BY booking_number DESC LIMIT 1`,
	SourcePayments: `SELECT payment_reference FROM booking_payments WHERE payment_reference LIKE $1 ORDER BY payment_reference DESC LIMIT 1`,
	SourceEntries:  `SELECT entry_code FROM entries WHERE entry_code LIKE $1 ORDER BY entry_code DESC LIMIT 1`,
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db db.DBTX
}

// NewStore constructs a PGStore bound to conn, normally a pgx.Tx.
func NewStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// LockSeries takes a transaction-scoped advisory lock on stem.
func (s *PGStore) LockSeries(ctx context.Context, stem string) error {
	return db.AdvisoryXactLock(ctx, s.db, shared.SequenceLockKey(stem))
}

// LastCode returns the highest code starting with stem.
func (s *PGStore) LastCode(ctx context.Context, source Source, stem string) (string, bool, error) {
	query, ok := lastCodeQueries[source]
	if !ok {
		return "", false, fmt.Errorf("sequence: unknown source %q", source)
	}
	var code string
	if err := s.db.QueryRow(ctx, query, stem+"%").Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return code, true, nil
}
