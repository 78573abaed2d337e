package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
)

// TurnStore is the durable conversation archive. The in-memory context
// window drives the model; this table keeps the full history for audit.
type TurnStore struct {
	db *DB
}

func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

func (s *TurnStore) Append(ctx context.Context, key domain.ConversationKey, turns ...domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn append: %w", err)
	}
	for _, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (conversation_key, role, content, created_at)
			VALUES (?, ?, ?, ?)`,
			key.String(), t.Role, t.Content, ts.UTC().Format(timeFormat)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting turn for %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn append: %w", err)
	}
	return nil
}

// Recent returns the newest limit turns for a conversation, oldest first.
func (s *TurnStore) Recent(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM turns
			WHERE conversation_key = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`, key.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns for %s: %w", key, err)
	}
	defer rows.Close()

	var out []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var created string
		if err := rows.Scan(&t.Role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Timestamp, _ = time.Parse(timeFormat, created)
		out = append(out, t)
	}
	return out, rows.Err()
}
