package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
)

// timeFormat is how timestamps are stored in TEXT columns.
const timeFormat = time.RFC3339Nano

// CallStore persists canonical call records. Correlation-key uniqueness
// is enforced by partial unique indexes so two concurrent creates for
// the same external id cannot both land.
type CallStore struct {
	db *DB
}

func NewCallStore(db *DB) *CallStore {
	return &CallStore{db: db}
}

// FindByVoiceCallID returns (nil, nil) when no record holds the key.
func (s *CallStore) FindByVoiceCallID(ctx context.Context, id string) (*domain.CallRecord, error) {
	return s.findBy(ctx, "voice_call_id", id)
}

// FindByTelephonyCallID returns (nil, nil) when no record holds the key.
func (s *CallStore) FindByTelephonyCallID(ctx context.Context, id string) (*domain.CallRecord, error) {
	return s.findBy(ctx, "telephony_call_id", id)
}

func (s *CallStore) findBy(ctx context.Context, column, id string) (*domain.CallRecord, error) {
	if id == "" {
		return nil, nil
	}
	row := s.db.sql.QueryRowContext(ctx, `
		SELECT id, voice_call_id, telephony_call_id, phone, direction, status,
		       duration_seconds, recording_url, language, started_at, ended_at
		FROM calls WHERE `+column+` = ?`, id)
	return scanCall(row)
}

// Get looks a record up by its internal id.
func (s *CallStore) Get(ctx context.Context, id string) (*domain.CallRecord, error) {
	row := s.db.sql.QueryRowContext(ctx, `
		SELECT id, voice_call_id, telephony_call_id, phone, direction, status,
		       duration_seconds, recording_url, language, started_at, ended_at
		FROM calls WHERE id = ?`, id)
	return scanCall(row)
}

// Create inserts a new record. A correlation-key collision returns
// domain.ErrDuplicateCorrelationKey.
func (s *CallStore) Create(ctx context.Context, rec *domain.CallRecord) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO calls (id, voice_call_id, telephony_call_id, phone, direction,
		                   status, duration_seconds, recording_url, language,
		                   started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullable(rec.VoiceCallID), nullable(rec.TelephonyCallID),
		rec.Phone, string(rec.Direction), string(rec.Status),
		rec.DurationSeconds, rec.RecordingURL, rec.Language,
		rec.StartedAt.UTC().Format(timeFormat), nullableTime(rec.EndedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCorrelationKey
		}
		return fmt.Errorf("inserting call %s: %w", rec.ID, err)
	}
	return nil
}

// Update rewrites every mutable field of an existing record.
func (s *CallStore) Update(ctx context.Context, rec *domain.CallRecord) error {
	_, err := s.db.sql.ExecContext(ctx, `
		UPDATE calls SET voice_call_id = ?, telephony_call_id = ?, phone = ?,
		                 direction = ?, status = ?, duration_seconds = ?,
		                 recording_url = ?, language = ?, started_at = ?,
		                 ended_at = ?, updated_at = datetime('now')
		WHERE id = ?`,
		nullable(rec.VoiceCallID), nullable(rec.TelephonyCallID), rec.Phone,
		string(rec.Direction), string(rec.Status), rec.DurationSeconds,
		rec.RecordingURL, rec.Language, rec.StartedAt.UTC().Format(timeFormat),
		nullableTime(rec.EndedAt), rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCorrelationKey
		}
		return fmt.Errorf("updating call %s: %w", rec.ID, err)
	}
	return nil
}

// SaveTranscript appends a transcript for a call.
func (s *CallStore) SaveTranscript(ctx context.Context, tr domain.CallTranscript) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO call_transcripts (call_id, text, created_at) VALUES (?, ?, ?)`,
		tr.CallID, tr.Text, tr.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting transcript for call %s: %w", tr.CallID, err)
	}
	return nil
}

// Transcripts returns a call's transcripts, oldest first.
func (s *CallStore) Transcripts(ctx context.Context, callID string) ([]domain.CallTranscript, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT call_id, text, created_at FROM call_transcripts
		WHERE call_id = ? ORDER BY id`, callID)
	if err != nil {
		return nil, fmt.Errorf("querying transcripts for call %s: %w", callID, err)
	}
	defer rows.Close()

	var out []domain.CallTranscript
	for rows.Next() {
		var tr domain.CallTranscript
		var created string
		if err := rows.Scan(&tr.CallID, &tr.Text, &created); err != nil {
			return nil, fmt.Errorf("scanning transcript: %w", err)
		}
		tr.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func scanCall(row *sql.Row) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	var voiceID, telephonyID, endedAt sql.NullString
	var direction, status, startedAt string

	err := row.Scan(&rec.ID, &voiceID, &telephonyID, &rec.Phone, &direction,
		&status, &rec.DurationSeconds, &rec.RecordingURL, &rec.Language,
		&startedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}

	rec.VoiceCallID = voiceID.String
	rec.TelephonyCallID = telephonyID.String
	rec.Direction = domain.CallDirection(direction)
	rec.Status = domain.CallStatus(status)
	rec.StartedAt, _ = time.Parse(timeFormat, startedAt)
	if endedAt.Valid {
		if t, perr := time.Parse(timeFormat, endedAt.String); perr == nil {
			rec.EndedAt = &t
		}
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
