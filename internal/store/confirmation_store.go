package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
)

// ConfirmationStore is the durable pending-confirmation ledger.
type ConfirmationStore struct {
	db *DB
}

func NewConfirmationStore(db *DB) *ConfirmationStore {
	return &ConfirmationStore{db: db}
}

// Put inserts or replaces the entry for an order. Re-requesting a
// confirmation resets its TTL rather than erroring.
func (s *ConfirmationStore) Put(ctx context.Context, pc domain.PendingConfirmation) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO pending_confirmations (order_id, customer_phone, items_summary, total_amount, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			customer_phone = excluded.customer_phone,
			items_summary  = excluded.items_summary,
			total_amount   = excluded.total_amount,
			expires_at     = excluded.expires_at`,
		pc.OrderID, pc.CustomerPhone, pc.ItemsSummary, pc.TotalAmount,
		pc.ExpiresAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("storing confirmation for order %s: %w", pc.OrderID, err)
	}
	return nil
}

// ListPending returns every ledger entry, including expired ones; the
// resolver treats expiry at read time.
func (s *ConfirmationStore) ListPending(ctx context.Context) ([]domain.PendingConfirmation, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT order_id, customer_phone, items_summary, total_amount, expires_at
		FROM pending_confirmations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing confirmations: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingConfirmation
	for rows.Next() {
		var pc domain.PendingConfirmation
		var expires string
		if err := rows.Scan(&pc.OrderID, &pc.CustomerPhone, &pc.ItemsSummary, &pc.TotalAmount, &expires); err != nil {
			return nil, fmt.Errorf("scanning confirmation: %w", err)
		}
		pc.ExpiresAt, _ = time.Parse(timeFormat, expires)
		out = append(out, pc)
	}
	return out, rows.Err()
}

// Delete removes the entry and reports whether it existed, so callers
// get exactly-once consumption under concurrent resolutions.
func (s *ConfirmationStore) Delete(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM pending_confirmations WHERE order_id = ?`, orderID)
	if err != nil {
		return false, fmt.Errorf("deleting confirmation for order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting confirmation for order %s: %w", orderID, err)
	}
	return n > 0, nil
}
