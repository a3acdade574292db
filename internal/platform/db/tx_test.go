package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestWithTxIsReadCommitted(t *testing.T) {
	require.Equal(t, pgx.ReadCommitted, txOptions.IsoLevel)
	require.Equal(t, pgx.TxAccessMode(""), txOptions.AccessMode)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_entries_source_ref"})

	require.True(t, IsUniqueViolation(dup, ""))
	require.True(t, IsUniqueViolation(dup, "uq_entries_source_ref"))
	require.False(t, IsUniqueViolation(dup, "uq_bookings_booking_number"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	require.False(t, IsUniqueViolation(errors.New("plain"), ""))
}
