package sequence

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	codes map[Source][]string
	locks []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{codes: make(map[Source][]string)}
}

func (m *memoryStore) LockSeries(ctx context.Context, stem string) error {
	m.locks = append(m.locks, stem)
	return nil
}

func (m *memoryStore) LastCode(ctx context.Context, source Source, stem string) (string, bool, error) {
	var matches []string
	for _, code := range m.codes[source] {
		if strings.HasPrefix(code, stem) {
			matches = append(matches, code)
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], true, nil
}

func (m *memoryStore) persist(source Source, code string) {
	m.codes[source] = append(m.codes[source], code)
}

func TestBookingNumberStartsAtOne(t *testing.T) {
	store := newMemoryStore()
	gen := New(BookingNumbers(false))
	day := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	code, err := gen.Next(context.Background(), store, day)
	require.NoError(t, err)
	require.Equal(t, "SLBD2026101500000001", code)
	require.Equal(t, []string{"SLBD20261015"}, store.locks)
}

func TestLivePrefixes(t *testing.T) {
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "SLBL20260102", BookingNumbers(true).Stem(day))
	require.Equal(t, "PYL20260102", PaymentReferences(true).Stem(day))
	require.Equal(t, "PYD20260102", PaymentReferences(false).Stem(day))
}

func TestCodesStrictlyIncreaseWithinScope(t *testing.T) {
	store := newMemoryStore()
	gen := New(PaymentReferences(false))
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	var previous string
	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		code, err := gen.Next(context.Background(), store, day)
		require.NoError(t, err)
		require.Len(t, code, len("PYD20261015")+8)
		require.False(t, seen[code], "duplicate code %s", code)
		require.Greater(t, code, previous)
		seen[code] = true
		previous = code
		store.persist(SourcePayments, code)
	}
	require.Equal(t, "PYD2026101500000025", previous)
}

func TestScopeResetsDaily(t *testing.T) {
	store := newMemoryStore()
	store.persist(SourceBookings, "SLBD2026101400000042")
	gen := New(BookingNumbers(false))

	code, err := gen.Next(context.Background(), store, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "SLBD2026101500000001", code)

	code, err = gen.Next(context.Background(), store, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "SLBD2026101400000043", code)
}

func TestEntryCodesAreMonthly(t *testing.T) {
	store := newMemoryStore()
	store.persist(SourceEntries, "REC261000009")
	gen := New(EntryCodes())

	code, err := gen.Next(context.Background(), store, time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "REC261000010", code)

	code, err = gen.Next(context.Background(), store, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "REC261100001", code)
}

func TestSeriesExhausted(t *testing.T) {
	store := newMemoryStore()
	store.persist(SourceEntries, "REC261099999")
	gen := New(EntryCodes())

	_, err := gen.Next(context.Background(), store, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestMalformedPersistedCode(t *testing.T) {
	store := newMemoryStore()
	store.persist(SourceBookings, "SLBD20261015ABCDEFGH")
	gen := New(BookingNumbers(false))

	_, err := gen.Next(context.Background(), store, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrMalformedCode)
}
