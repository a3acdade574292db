package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("sales order not found")
	ErrAlreadyCancelled = errors.New("sales order is already cancelled")
	ErrCompleted        = errors.New("cannot cancel a completed sales order")
	ErrInvalidStatus    = errors.New("invalid status transition")
)

// ============================================================================
// BOOKING
// ============================================================================

const (
	BookingTypeSales    = "SALES"
	BookingThroughAdmin = "ADMIN"
	ItemStatusCompleted = "COMPLETED"
	PaymentTypeFull     = "FULL"
	PaymentSuccess      = "SUCCESS"
	DefaultPhoneCode    = "+60"
)

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentFull    PaymentStatus = "FULL"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentFull:
		return true
	}
	return false
}

// DeterminePaymentStatus derives the payment status from the paid and total
// amounts.
func DeterminePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentPending
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentFull
	}
}

type PrintOption string

const (
	PrintNone     PrintOption = "NO_PRINT"
	PrintSingle   PrintOption = "SINGLE_PRINT"
	PrintSeparate PrintOption = "SEP_PRINT"
)

// Booking is a sales order header with its children.
type Booking struct {
	ID                  int64
	Number              string
	Type                string
	Date                time.Time
	Status              BookingStatus
	PaymentStatus       PaymentStatus
	Subtotal            decimal.Decimal
	Discount            decimal.Decimal
	Deposit             decimal.Decimal
	Tax                 decimal.Decimal
	Total               decimal.Decimal
	Paid                decimal.Decimal
	PrintOption         PrintOption
	SpecialInstructions string
	BookingThrough      string
	InventoryMigrated   bool
	AccountMigrated     bool
	CreatedBy           int64
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Creator  *User
	Items    []BookingItem
	Meta     []Meta
	Payments []Payment
}

// Balance is the amount still owed on the booking.
func (b Booking) Balance() decimal.Decimal {
	return b.Total.Sub(b.Paid)
}

// LatestPayment returns the most recent payment, if any.
func (b Booking) LatestPayment() (Payment, bool) {
	if len(b.Payments) == 0 {
		return Payment{}, false
	}
	latest := b.Payments[0]
	for _, p := range b.Payments[1:] {
		if p.PaymentDate.After(latest.PaymentDate) || (p.PaymentDate.Equal(latest.PaymentDate) && p.ID > latest.ID) {
			latest = p
		}
	}
	return latest, true
}

// BookingItem is a sold line.
type BookingItem struct {
	ID            int64
	BookingID     int64
	ItemType      string
	ItemID        int64
	DeityID       *int64
	Name          string
	NameSecondary string
	ShortCode     string
	ServiceDate   time.Time
	Quantity      int64
	UnitPrice     decimal.Decimal
	TotalPrice    decimal.Decimal
	Status        string
	Meta          []Meta
}

// Payment is the payment captured with a sales order.
type Payment struct {
	ID            int64
	BookingID     int64
	Reference     string
	PaymentDate   time.Time
	Amount        decimal.Decimal
	PaymentModeID int64
	PaymentMethod string
	PaymentType   string
	Status        string
	PaidThrough   string
	CreatedBy     int64
}

// User is the minimal view of the creator of a booking.
type User struct {
	ID   int64
	Name string
}

// ============================================================================
// QUERIES
// ============================================================================

// Ref addresses a booking by id or by booking number.
type Ref struct {
	ID     int64
	Number string
}

// ListFilter narrows List results.
type ListFilter struct {
	Search        string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	FromDate      *time.Time
	ToDate        *time.Time
	Page          int
	PerPage       int
}
