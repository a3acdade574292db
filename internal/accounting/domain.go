package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction marks an entry item as debit or credit.
type Direction string

const (
	Debit  Direction = "D"
	Credit Direction = "C"
)

const (
	// EntryTypeReceipt is the entry type used for POS receipts.
	EntryTypeReceipt = 1
	// InvTypeSales links an entry back to a sales booking.
	InvTypeSales = 3

	IncomesGroupCode      = "8000"
	IncomesGroupName      = "Incomes"
	SalesIncomeLedgerName = "Sales Income"

	SettingDepositLedger  = "deposit_ledger_id"
	SettingDiscountLedger = "discount_ledger_id"
)

// Group is a chart of accounts group.
type Group struct {
	ID       int64
	ParentID int64
	Name     string
	Code     string
	AddedBy  int64
}

// Ledger is a postable account belonging to a group.
type Ledger struct {
	ID        int64
	GroupID   int64
	Name      string
	LeftCode  string
	RightCode string
	Type      int
}

// Code returns the composite ledger code.
func (l Ledger) Code() string {
	return l.LeftCode + "/" + l.RightCode
}

// PaymentMode links a payment method to its cash or bank ledger.
type PaymentMode struct {
	ID       int64
	Name     string
	LedgerID *int64
}

// Entry is a journal transaction header.
type Entry struct {
	ID          int64
	EntryTypeID int
	Code        string
	Date        time.Time
	DrTotal     decimal.Decimal
	CrTotal     decimal.Decimal
	Narration   string
	InvID       int64
	InvType     int
	SourceRef   uuid.UUID
	CreatedBy   int64
	CreatedAt   time.Time
	Items       []EntryItem
}

// EntryItem is one debit or credit line of an Entry.
type EntryItem struct {
	ID         int64
	EntryID    int64
	LedgerID   int64
	Amount     decimal.Decimal
	Details    string
	DC         Direction
	IsDiscount bool
}

// Sums returns the debit and credit totals of the entry items.
func (e Entry) Sums() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, item := range e.Items {
		switch item.DC {
		case Debit:
			debit = debit.Add(item.Amount)
		case Credit:
			credit = credit.Add(item.Amount)
		}
	}
	return debit, credit
}

// Validate ensures every line is postable. Balance is not enforced here.
func (e Entry) Validate() error {
	if e.Code == "" {
		return fmt.Errorf("accounting: entry code required")
	}
	if e.SourceRef == uuid.Nil {
		return fmt.Errorf("accounting: source ref required")
	}
	if len(e.Items) < 2 {
		return ErrTooFewLines
	}
	for idx, item := range e.Items {
		if item.LedgerID == 0 {
			return fmt.Errorf("accounting: line %d missing ledger", idx)
		}
		if item.Amount.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if item.DC != Debit && item.DC != Credit {
			return fmt.Errorf("accounting: line %d invalid direction %q", idx, item.DC)
		}
	}
	return nil
}

// SourceRef derives the stable reference of the entry posted for a booking.
func SourceRef(bookingID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("SALES:%d", bookingID)))
}

// Sale is the view of a booking needed to post its receipt entry.
type Sale struct {
	BookingID     int64
	BookingNumber string
	BookingDate   time.Time
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Payments      []SalePayment
	Items         []SaleLine
	DevoteeName   string
	DevoteeNRIC   string
}

// SalePayment is a payment recorded against a sale.
type SalePayment struct {
	ID            int64
	PaymentModeID int64
	Amount        decimal.Decimal
}

// SaleLine is a sold item.
type SaleLine struct {
	SaleItemID int64
	Name       string
	Total      decimal.Decimal
}
