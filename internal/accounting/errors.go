package accounting

import "errors"

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrAlreadyPosted indicates the booking already has a receipt entry.
	ErrAlreadyPosted = errors.New("accounting: sales order already posted")

	ErrSaleNotFound             = errors.New("sales order not found")
	ErrNoPayment                = errors.New("no payment found for sales order")
	ErrPaymentModeNotFound      = errors.New("payment mode not found")
	ErrPaymentModeLedgerMissing = errors.New("payment mode ledger configuration missing")
	ErrNoItems                  = errors.New("no items found in sales order")
	ErrDiscountLedgerMissing    = errors.New("discount ledger configuration missing")
	ErrInvalidSetting           = errors.New("accounting: invalid booking setting")
)
