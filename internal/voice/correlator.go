package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glintcart/glintbot/internal/dedup"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
)

// CallStore is the persistence collaborator for call records. Find
// methods return (nil, nil) when no record matches. Create returns
// domain.ErrDuplicateCorrelationKey when another record already holds
// one of the new record's correlation keys.
type CallStore interface {
	Get(ctx context.Context, id string) (*domain.CallRecord, error)
	FindByVoiceCallID(ctx context.Context, id string) (*domain.CallRecord, error)
	FindByTelephonyCallID(ctx context.Context, id string) (*domain.CallRecord, error)
	Create(ctx context.Context, rec *domain.CallRecord) error
	Update(ctx context.Context, rec *domain.CallRecord) error
	SaveTranscript(ctx context.Context, tr domain.CallTranscript) error
}

// Correlator merges webhook events from both providers into canonical
// call records. Creates serialize on the event's correlation key,
// updates on the record id, so concurrent deliveries can neither create
// two records for one call nor interleave their merges.
type Correlator struct {
	store CallStore
	claim dedup.Claimer
	locks keyedMutex
	log   *logging.Logger
	now   func() time.Time
}

func NewCorrelator(store CallStore, claim dedup.Claimer, log *logging.Logger) *Correlator {
	return &Correlator{
		store: store,
		claim: claim,
		log:   log.Sub("correlator"),
		now:   time.Now,
	}
}

// ApplyEvent runs the lookup-or-create algorithm for one event and
// returns the canonical record, or nil when the event was a replay or
// had no way to identify a customer. Replayed deliveries return the
// existing record without mutating it.
func (c *Correlator) ApplyEvent(ctx context.Context, ev CallEvent) (*domain.CallRecord, error) {
	if !c.claim.Claim(ev.Fingerprint()) {
		c.log.Debug().Str("source", ev.Source).Str("fingerprint", ev.Fingerprint()).Msg("duplicate event ignored")
		rec, err := c.find(ctx, ev)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	unlock := c.locks.lock(ev.lockKey())
	defer unlock()

	rec, err := c.find(ctx, ev)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		if ev.Phone == "" {
			c.log.Warn().
				Str("source", ev.Source).
				Str("voice_call_id", ev.VoiceCallID).
				Str("telephony_call_id", ev.TelephonyCallID).
				Msg("event discarded: no matching record and no phone number")
			return nil, nil
		}
		rec, err = c.create(ctx, ev)
	} else {
		rec, err = c.applyUpdate(ctx, rec.ID, ev)
	}
	if err != nil {
		return nil, err
	}

	if ev.Transcript != "" {
		tr := domain.CallTranscript{CallID: rec.ID, Text: ev.Transcript, CreatedAt: c.now()}
		if err := c.store.SaveTranscript(ctx, tr); err != nil {
			return nil, fmt.Errorf("saving transcript for call %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// find searches by decreasing key specificity: voice-platform id first,
// then telephony id.
func (c *Correlator) find(ctx context.Context, ev CallEvent) (*domain.CallRecord, error) {
	if ev.VoiceCallID != "" {
		rec, err := c.store.FindByVoiceCallID(ctx, ev.VoiceCallID)
		if err != nil {
			return nil, fmt.Errorf("looking up voice call id %s: %w", ev.VoiceCallID, err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	if ev.TelephonyCallID != "" {
		rec, err := c.store.FindByTelephonyCallID(ctx, ev.TelephonyCallID)
		if err != nil {
			return nil, fmt.Errorf("looking up telephony call id %s: %w", ev.TelephonyCallID, err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// create inserts a fresh record. A unique-key conflict means another
// delivery won the race; the event is then re-applied as an update to
// the record that won.
func (c *Correlator) create(ctx context.Context, ev CallEvent) (*domain.CallRecord, error) {
	rec := &domain.CallRecord{
		ID:              uuid.NewString(),
		VoiceCallID:     ev.VoiceCallID,
		TelephonyCallID: ev.TelephonyCallID,
		Phone:           domain.NormalizePhone(ev.Phone),
		Direction:       ev.Direction,
		Status:          domain.CallPending,
		StartedAt:       c.now(),
	}
	if ev.StartedAt != nil {
		rec.StartedAt = *ev.StartedAt
	}
	c.merge(rec, ev)

	err := c.store.Create(ctx, rec)
	if err == nil {
		c.log.Info().
			Str("call_id", rec.ID).
			Str("phone", rec.Phone).
			Str("source", ev.Source).
			Msg("call record created")
		return rec, nil
	}
	if !errors.Is(err, domain.ErrDuplicateCorrelationKey) {
		return nil, fmt.Errorf("creating call record: %w", err)
	}

	// Lost the create race to a concurrent delivery on another key path.
	existing, ferr := c.find(ctx, ev)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, fmt.Errorf("creating call record: %w", err)
	}
	return c.applyUpdate(ctx, existing.ID, ev)
}

// applyUpdate merges the event into an existing record under a lock on
// the record itself. The event-key lock alone is not enough: a
// voice-only and a telephony-only event for one linked record lock
// different event keys, and their read-merge-write sequences must not
// interleave. The record is re-read under the lock so the merge starts
// from the latest stored values.
func (c *Correlator) applyUpdate(ctx context.Context, id string, ev CallEvent) (*domain.CallRecord, error) {
	unlock := c.locks.lock("record:" + id)
	defer unlock()

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading call record %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("call record %s vanished during update", id)
	}

	c.merge(rec, ev)
	if err := c.store.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("updating call record %s: %w", rec.ID, err)
	}
	return rec, nil
}

// merge applies the event's supplied fields onto rec. Absent event
// fields never overwrite present values; identity-key disagreements are
// logged and the newer event wins.
func (c *Correlator) merge(rec *domain.CallRecord, ev CallEvent) {
	if ev.VoiceCallID != "" {
		if rec.VoiceCallID != "" && rec.VoiceCallID != ev.VoiceCallID {
			c.log.Warn().
				Str("call_id", rec.ID).
				Str("have", rec.VoiceCallID).
				Str("got", ev.VoiceCallID).
				Msg("correlation conflict on voice call id, newer event wins")
		}
		rec.VoiceCallID = ev.VoiceCallID
	}
	if ev.TelephonyCallID != "" {
		if rec.TelephonyCallID != "" && rec.TelephonyCallID != ev.TelephonyCallID {
			c.log.Warn().
				Str("call_id", rec.ID).
				Str("have", rec.TelephonyCallID).
				Str("got", ev.TelephonyCallID).
				Msg("correlation conflict on telephony call id, newer event wins")
		}
		rec.TelephonyCallID = ev.TelephonyCallID
	}
	if ev.Phone != "" {
		rec.Phone = domain.NormalizePhone(ev.Phone)
	}
	if ev.Direction != "" {
		rec.Direction = ev.Direction
	}
	if ev.Status != "" {
		rec.Status = MapStatus(ev.Status)
	}
	if ev.DurationSeconds > 0 {
		rec.DurationSeconds = ev.DurationSeconds
	}
	if ev.RecordingURL != "" {
		rec.RecordingURL = ev.RecordingURL
	}
	if ev.Language != "" {
		rec.Language = ev.Language
	}
	if ev.StartedAt != nil {
		rec.StartedAt = *ev.StartedAt
	}
	if ev.EndedAt != nil {
		rec.EndedAt = ev.EndedAt
	}
}

// keyedMutex serializes work per string key without holding a global
// lock across the critical section.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
