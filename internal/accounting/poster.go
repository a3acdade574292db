package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/temple-erp/temple-pos/internal/sequence"
	"github.com/temple-erp/temple-pos/internal/shared"
)

var mismatchTolerance = decimal.RequireFromString("0.01")

// Observer is notified of every posted entry.
type Observer interface {
	ObserveEntry(entry Entry)
}

// Poster turns a sales booking into its receipt journal entry.
type Poster struct {
	resolver *Resolver
	codes    *sequence.Generator
	logger   *slog.Logger
	observer Observer
}

// NewPoster constructs a Poster.
func NewPoster(resolver *Resolver, logger *slog.Logger, observer Observer) *Poster {
	if resolver == nil {
		resolver = NewResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{resolver: resolver, codes: sequence.New(sequence.EntryCodes()), logger: logger, observer: observer}
}

type creditLine struct {
	ledgerID int64
	amount   decimal.Decimal
	details  string
}

// Post writes the receipt Entry for the booking and marks it migrated.
// The header totals are the booking subtotal. Lines are the discount debit,
// the payment debit and one credit per item; a line sum that differs from
// the credits is logged, not rejected. The caller owns commit and rollback.
func (p *Poster) Post(ctx context.Context, store TxStore, rc shared.RequestContext, bookingID int64) (Entry, error) {
	logger := p.logger.With(slog.Int64("booking_id", bookingID))

	sale, err := store.LoadSale(ctx, bookingID)
	if err != nil {
		return Entry{}, err
	}
	if len(sale.Payments) == 0 {
		return Entry{}, ErrNoPayment
	}
	payment := sale.Payments[0]
	mode, err := store.GetPaymentMode(ctx, payment.PaymentModeID)
	if err != nil {
		return Entry{}, err
	}
	if mode.LedgerID == nil || *mode.LedgerID == 0 {
		logger.Warn("payment mode has no ledger", slog.Int64("payment_mode_id", mode.ID), slog.String("payment_mode", mode.Name))
		return Entry{}, ErrPaymentModeLedgerMissing
	}
	if len(sale.Items) == 0 {
		return Entry{}, ErrNoItems
	}

	credits := make([]creditLine, 0, len(sale.Items))
	totalCredit := decimal.Zero
	for _, item := range sale.Items {
		ledgerID, err := p.resolver.ResolveCreditLedger(ctx, store, item.SaleItemID, rc.Actor.ID)
		if err != nil {
			return Entry{}, err
		}
		credits = append(credits, creditLine{
			ledgerID: ledgerID,
			amount:   item.Total,
			details:  fmt.Sprintf("Sale: %s (%s)", item.Name, sale.BookingNumber),
		})
		totalCredit = totalCredit.Add(item.Total)
	}
	if sale.Paid.Sub(totalCredit).Abs().GreaterThan(mismatchTolerance) {
		logger.Warn("amount mismatch in sales migration",
			slog.String("booking_number", sale.BookingNumber),
			slog.String("paid_amount", sale.Paid.StringFixed(2)),
			slog.String("total_credit", totalCredit.StringFixed(2)))
	}

	settings, err := store.Settings(ctx, SettingDepositLedger, SettingDiscountLedger)
	if err != nil {
		return Entry{}, fmt.Errorf("accounting: booking settings: %w", err)
	}
	discountLedger, err := settingID(settings, SettingDiscountLedger)
	if err != nil {
		return Entry{}, err
	}
	if discountLedger == 0 {
		return Entry{}, ErrDiscountLedgerMissing
	}
	// deposit_ledger_id is read alongside the discount ledger but nothing is posted to it.
	logger.Debug("booking settings loaded",
		slog.Int64("discount_ledger_id", discountLedger),
		slog.String("deposit_ledger_id", settings[SettingDepositLedger]))

	code, err := p.codes.Next(ctx, store, sale.BookingDate)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		EntryTypeID: EntryTypeReceipt,
		Code:        code,
		Date:        sale.BookingDate,
		DrTotal:     sale.Subtotal,
		CrTotal:     sale.Subtotal,
		Narration:   narration(sale),
		InvID:       sale.BookingID,
		InvType:     InvTypeSales,
		SourceRef:   SourceRef(sale.BookingID),
		CreatedBy:   rc.Actor.ID,
	}

	entry.Items = append(entry.Items,
		EntryItem{
			LedgerID:   discountLedger,
			Amount:     sale.Discount,
			Details:    fmt.Sprintf("POS Sales Discount (%s)", sale.BookingNumber),
			DC:         Debit,
			IsDiscount: true,
		},
		EntryItem{
			LedgerID: *mode.LedgerID,
			Amount:   sale.Paid,
			Details:  fmt.Sprintf("POS Sales (%s)", sale.BookingNumber),
			DC:       Debit,
		},
	)
	for _, credit := range credits {
		entry.Items = append(entry.Items, EntryItem{
			LedgerID: credit.ledgerID,
			Amount:   credit.amount,
			Details:  credit.details,
			DC:       Credit,
		})
	}

	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}
	if debit, credit := entry.Sums(); !debit.Equal(credit) {
		logger.Warn("entry lines do not balance",
			slog.String("booking_number", sale.BookingNumber),
			slog.String("debit", debit.StringFixed(2)),
			slog.String("credit", credit.StringFixed(2)),
			slog.String("entry_total", sale.Subtotal.StringFixed(2)))
	}

	entryID, err := store.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = entryID
	for i := range entry.Items {
		entry.Items[i].EntryID = entryID
	}
	if err := store.InsertEntryItems(ctx, entryID, entry.Items); err != nil {
		return Entry{}, err
	}
	if err := store.MarkAccountMigrated(ctx, bookingID); err != nil {
		return Entry{}, err
	}

	logger.Info("account migration completed",
		slog.String("booking_number", sale.BookingNumber),
		slog.Int64("entry_id", entryID),
		slog.String("entry_code", code))
	if p.observer != nil {
		p.observer.ObserveEntry(entry)
	}
	return entry, nil
}

func narration(sale Sale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "POS Sales (%s)\n", sale.BookingNumber)
	fmt.Fprintf(&b, "Items: %d\n", len(sale.Items))
	if sale.DevoteeName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", sale.DevoteeName)
	}
	if sale.DevoteeNRIC != "" {
		fmt.Fprintf(&b, "NRIC: %s\n", sale.DevoteeNRIC)
	}
	return b.String()
}

func settingID(settings map[string]string, key string) (int64, error) {
	raw := strings.TrimSpace(settings[key])
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidSetting, key, raw)
	}
	return id, nil
}
