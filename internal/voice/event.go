// Package voice reconciles asynchronous call lifecycle events from the
// voice AI platform and the telephony provider into canonical call
// records, and resolves pending order confirmations from completed-call
// transcripts.
package voice

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
)

// Event sources.
const (
	SourceVoicePlatform = "voice_platform"
	SourceTelephony     = "telephony"
)

// CallEvent is one inbound webhook event about a call, from either
// provider. Zero-valued fields mean the provider did not supply them.
type CallEvent struct {
	Source          string
	EventID         string
	VoiceCallID     string
	TelephonyCallID string
	Phone           string
	Direction       domain.CallDirection
	Status          string // raw provider status, mapped via MapStatus
	DurationSeconds int
	RecordingURL    string
	Language        string
	Transcript      string
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// Fingerprint identifies this delivery for deduplication. Providers that
// send an event id get exact replay detection; otherwise the fingerprint
// is derived from the event's identifying content.
func (e CallEvent) Fingerprint() string {
	if e.EventID != "" {
		return e.Source + ":" + e.EventID
	}
	h := sha256.New()
	for _, part := range []string{
		e.Source, e.VoiceCallID, e.TelephonyCallID, e.Phone,
		e.Status, strconv.Itoa(e.DurationSeconds),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return e.Source + ":" + hex.EncodeToString(h.Sum(nil))
}

// lockKey picks the most specific identifier for per-call serialization.
func (e CallEvent) lockKey() string {
	switch {
	case e.VoiceCallID != "":
		return "v:" + e.VoiceCallID
	case e.TelephonyCallID != "":
		return "t:" + e.TelephonyCallID
	default:
		return "p:" + domain.NormalizePhone(e.Phone)
	}
}

// MapStatus translates a raw provider status into the call lifecycle
// status. Unknown statuses map to resolved rather than erroring, so a
// provider adding a status value cannot wedge the webhook pipeline.
func MapStatus(raw string) domain.CallStatus {
	switch raw {
	case "completed", "resolved":
		return domain.CallResolved
	case "escalated", "transferred":
		return domain.CallEscalated
	case "failed", "error":
		return domain.CallFailed
	case "missed", "no-answer", "busy", "canceled":
		return domain.CallMissed
	default:
		return domain.CallResolved
	}
}

// Connected reports whether the call actually reached the customer.
// Confirmation transcripts are only meaningful for connected calls.
func Connected(status domain.CallStatus) bool {
	return status != domain.CallMissed && status != domain.CallFailed
}
