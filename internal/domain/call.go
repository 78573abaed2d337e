package domain

import (
	"errors"
	"time"
)

// CallDirection is the direction of a voice call.
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// CallStatus is the lifecycle outcome of a voice call.
type CallStatus string

const (
	CallPending   CallStatus = "pending"   // created, no terminal event yet
	CallResolved  CallStatus = "resolved"  // bot handled successfully
	CallEscalated CallStatus = "escalated" // transferred to a human
	CallMissed    CallStatus = "missed"    // not answered / busy / canceled
	CallFailed    CallStatus = "failed"    // technical error
)

// ErrDuplicateCorrelationKey is returned by call stores when a create would
// violate the one-record-per-correlation-key invariant.
var ErrDuplicateCorrelationKey = errors.New("correlation key already bound to another call record")

// CallRecord is the canonical record for one voice interaction. The internal
// ID is generated once and immutable; the external correlation keys
// (VoiceCallID from the voice platform, TelephonyCallID from the telephony
// provider) are each unique across records when set.
type CallRecord struct {
	ID              string        `json:"id"`
	VoiceCallID     string        `json:"voiceCallId,omitempty"`
	TelephonyCallID string        `json:"telephonyCallId,omitempty"`
	Phone           string        `json:"phone"`
	Direction       CallDirection `json:"direction"`
	Status          CallStatus    `json:"status"`
	DurationSeconds int           `json:"durationSeconds,omitempty"`
	RecordingURL    string        `json:"recordingUrl,omitempty"`
	Language        string        `json:"language,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

// CallTranscript is the full transcript of a call, stored separately from
// the record so it can be scrubbed by retention without touching the call.
type CallTranscript struct {
	CallID    string    `json:"callId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
