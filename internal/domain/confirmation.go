package domain

import "time"

// PendingConfirmation is a ledger entry created when an outbound order
// confirmation call is requested. It is consumed exactly once when a
// matching call completes, or expires untouched after its TTL.
type PendingConfirmation struct {
	OrderID       string    `json:"orderId"`
	CustomerPhone string    `json:"customerPhone"`
	ItemsSummary  string    `json:"itemsSummary,omitempty"`
	TotalAmount   float64   `json:"totalAmount,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is past its TTL at the given instant.
// Expiry is checked at read time so correctness does not depend on any
// storage backend's eviction behavior.
func (p PendingConfirmation) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// ConfirmationOutcome is the derived result of resolving a confirmation
// call. It is handed to the order backend and never persisted here.
type ConfirmationOutcome struct {
	OrderID   string `json:"orderId"`
	Confirmed bool   `json:"confirmed"`
	Notes     string `json:"notes"`
}
