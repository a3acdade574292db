package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrActorRequired occurs when a mutating call carries no actor.
	ErrActorRequired = errors.New("request actor required")
)

// ErrorKind classifies failures for transport mapping.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindDuplicate
	KindInventory
	KindAccounting
	KindReversal
)

// Error types surfaced to clients through error_type.
const (
	TypeInventory         = "INVENTORY_ERROR"
	TypeAccounting        = "ACCOUNT_ERROR"
	TypeInventoryReversal = "INVENTORY_REVERSAL_ERROR"
)

// Error is a classified failure carrying a client-facing message.
type Error struct {
	Kind    ErrorKind
	Type    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("error kind %d", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError reports field-level input problems.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// NotFoundError wraps a lookup miss.
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: ErrNotFound}
}

// ConflictError rejects an operation that the current state forbids.
func ConflictError(err error) *Error {
	return &Error{Kind: KindConflict, Message: err.Error(), Err: err}
}

// DuplicateError reports a replayed request.
func DuplicateError(err error) *Error {
	return &Error{Kind: KindDuplicate, Message: err.Error(), Err: err}
}

// InventoryError tags a stock failure.
func InventoryError(err error) *Error {
	return &Error{Kind: KindInventory, Type: TypeInventory, Message: err.Error(), Err: err}
}

// AccountingError tags a ledger failure.
func AccountingError(err error) *Error {
	return &Error{Kind: KindAccounting, Type: TypeAccounting, Message: "Account migration failed: " + err.Error(), Err: err}
}

// ReversalError tags a failed inventory reversal.
func ReversalError(err error) *Error {
	return &Error{Kind: KindReversal, Type: TypeInventoryReversal, Message: "Failed to reverse inventory: " + err.Error(), Err: err}
}

// AsError extracts a classified error from the chain.
func AsError(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindUnexpected when unclassified.
func KindOf(err error) ErrorKind {
	if classified, ok := AsError(err); ok {
		return classified.Kind
	}
	return KindUnexpected
}
