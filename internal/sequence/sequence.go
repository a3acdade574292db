// Package sequence allocates human-readable, date-scoped document codes such
// as booking numbers, payment references and journal entry codes.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSequenceExhausted is returned when the next value no longer fits the series width.
	ErrSequenceExhausted = errors.New("sequence: series exhausted for scope")
	// ErrMalformedCode is returned when the last persisted code has a non-numeric suffix.
	ErrMalformedCode = errors.New("sequence: malformed persisted code")
)

// Source identifies which persisted column a series scans.
type Source string

const (
	SourceBookings Source = "bookings"
	SourcePayments Source = "booking_payments"
	SourceEntries  Source = "entries"
)

// Series describes one code family.
type Series struct {
	Name   string
	Prefix string
	// Layout is a time layout rendering the scope part, e.g. "20060102" for a daily series.
	Layout string
	Width  int
	Source Source
}

// BookingNumbers is the daily booking number series.
func BookingNumbers(live bool) Series {
	prefix := "SLBD"
	if live {
		prefix = "SLBL"
	}
	return Series{Name: "booking_number", Prefix: prefix, Layout: "20060102", Width: 8, Source: SourceBookings}
}

// PaymentReferences is the daily payment reference series.
func PaymentReferences(live bool) Series {
	prefix := "PYD"
	if live {
		prefix = "PYL"
	}
	return Series{Name: "payment_reference", Prefix: prefix, Layout: "20060102", Width: 8, Source: SourcePayments}
}

// EntryCodes is the monthly receipt entry series, e.g. REC261000001.
func EntryCodes() Series {
	return Series{Name: "entry_code", Prefix: "REC", Layout: "0601", Width: 5, Source: SourceEntries}
}

// Stem renders the prefix and scope part shared by every code in scope.
func (s Series) Stem(scope time.Time) string {
	return s.Prefix + scope.Format(s.Layout)
}

// Format renders the n-th code of stem.
func (s Series) Format(stem string, n int64) (string, error) {
	if n < 1 || n > s.max() {
		return "", fmt.Errorf("%w: %s #%d", ErrSequenceExhausted, stem, n)
	}
	return stem + fmt.Sprintf("%0*d", s.Width, n), nil
}

// Parse extracts the numeric suffix of code.
func (s Series) Parse(code string) (int64, error) {
	if len(code) < s.Width {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	suffix := code[len(code)-s.Width:]
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	return n, nil
}

func (s Series) max() int64 {
	var m int64 = 1
	for i := 0; i < s.Width; i++ {
		m *= 10
	}
	return m - 1
}

// Store reads the most recent persisted code of a series. Implementations
// run on the caller's transaction.
type Store interface {
	LockSeries(ctx context.Context, stem string) error
	LastCode(ctx context.Context, source Source, stem string) (string, bool, error)
}

// Generator allocates the next code of one series.
type Generator struct {
	series Series
}

// New constructs a Generator.
func New(series Series) *Generator {
	return &Generator{series: series}
}

// Series returns the generator's series.
func (g *Generator) Series() Series {
	return g.series
}

// Next returns the code following the highest persisted code in scope. The
// series lock is held until the caller's transaction ends, so concurrent
// callers serialise instead of computing the same number.
func (g *Generator) Next(ctx context.Context, store Store, scope time.Time) (string, error) {
	if store == nil {
		return "", errors.New("sequence: store required")
	}
	stem := g.series.Stem(scope)
	if err := store.LockSeries(ctx, stem); err != nil {
		return "", err
	}
	last, found, err := store.LastCode(ctx, g.series.Source, stem)
	if err != nil {
		return "", fmt.Errorf("sequence: last %s: %w", g.series.Name, err)
	}
	var n int64 = 1
	if found && strings.HasPrefix(last, stem) {
		current, err := g.series.Parse(last)
		if err != nil {
			return "", err
		}
		n = current + 1
	}
	return g.series.Format(stem, n)
}
