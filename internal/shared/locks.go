package shared

import "fmt"

// BookingLockKey builds redis keys for per-booking critical sections.
func BookingLockKey(bookingID int64) string {
	return fmt.Sprintf("sales:booking:%d:lock", bookingID)
}

// SequenceLockKey names the advisory lock guarding a code series stem.
func SequenceLockKey(stem string) string {
	return "sequence:" + stem
}

// LedgerGroupLockKey names the advisory lock guarding ledger code allocation.
func LedgerGroupLockKey(groupCode string) string {
	return "ledger:group:" + groupCode
}
