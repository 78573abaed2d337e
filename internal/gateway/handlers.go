package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/glintcart/glintbot/internal/agent"
	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/voice"
)

// maxWebhookBody caps inbound webhook payloads.
const maxWebhookBody = 1 << 20 // 1MB

// telephonyTimeFormat is how the telephony provider formats timestamps.
const telephonyTimeFormat = "2006-01-02 15:04:05"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- chat provider ---

type chatMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type chatStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type chatWebhookPayload struct {
	Messages []chatMessage `json:"messages,omitempty"`
	Statuses []chatStatus  `json:"statuses,omitempty"`
}

// handleChatWebhook processes a signed batch of chat messages. Each
// message is answered through the conversation engine and delivered back
// over the chat channel. Failures degrade to an apology so the customer
// always hears something.
func (s *Server) handleChatWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !VerifySignature(s.cfg.Gateway.Auth.ChatSecret, body, r.Header.Get("X-Signature")) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("chat webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload chatWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	for _, st := range payload.Statuses {
		s.log.Debug().Str("message_id", st.ID).Str("status", st.Status).Msg("delivery status")
	}

	processed := 0
	for _, msg := range payload.Messages {
		if msg.Text == "" || msg.From == "" {
			continue
		}
		// Providers that omit message ids give us nothing to dedup on;
		// those messages always pass through.
		if msg.ID != "" && !s.claims.Claim("chat:" + msg.ID) {
			s.log.Debug().Str("message_id", msg.ID).Msg("duplicate chat message ignored")
			continue
		}
		s.answerChatMessage(r.Context(), msg)
		processed++
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func (s *Server) answerChatMessage(ctx context.Context, msg chatMessage) {
	key := domain.ConversationKey{Channel: "chat", CustomerPhone: domain.NormalizePhone(msg.From)}

	text := ""
	reply, err := s.orchestrator.HandleMessage(ctx, key, msg.Text)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", key.String()).Msg("conversation engine failed")
		text = "Sorry, I'm having trouble right now. Please try again in a few minutes."
	} else {
		text = reply.Text
	}

	if s.chat == nil {
		return
	}
	if err := s.chat.SendText(ctx, msg.From, text); err != nil {
		s.log.Error().Err(err).Str("conversation", key.String()).Msg("sending chat reply failed")
	}
}

// --- voice platform ---

type voiceCallPayload struct {
	EventID         string `json:"event_id,omitempty"`
	CallID          string `json:"call_id"`
	TelephonyCallID string `json:"telephony_call_id,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Direction       string `json:"direction,omitempty"`
	Status          string `json:"status,omitempty"`
	Duration        int    `json:"duration,omitempty"`
	RecordingURL    string `json:"recording_url,omitempty"`
	Language        string `json:"language,omitempty"`
	Transcript      string `json:"transcript,omitempty"`
	StartedAt       string `json:"started_at,omitempty"`
	EndedAt         string `json:"ended_at,omitempty"`
}

func (p voiceCallPayload) toEvent() voice.CallEvent {
	ev := voice.CallEvent{
		Source:          voice.SourceVoicePlatform,
		EventID:         p.EventID,
		VoiceCallID:     p.CallID,
		TelephonyCallID: p.TelephonyCallID,
		Phone:           p.Phone,
		Status:          p.Status,
		DurationSeconds: p.Duration,
		RecordingURL:    p.RecordingURL,
		Language:        p.Language,
		Transcript:      p.Transcript,
	}
	switch p.Direction {
	case "inbound", "incoming":
		ev.Direction = domain.DirectionInbound
	case "outbound", "outgoing":
		ev.Direction = domain.DirectionOutbound
	}
	if t, err := time.Parse(time.RFC3339, p.StartedAt); err == nil {
		ev.StartedAt = &t
	}
	if t, err := time.Parse(time.RFC3339, p.EndedAt); err == nil {
		ev.EndedAt = &t
	}
	return ev
}

// handleCallComplete ingests the voice platform's end-of-call report,
// updates the canonical record, and resolves any pending confirmation.
func (s *Server) handleCallComplete(w http.ResponseWriter, r *http.Request) {
	var payload voiceCallPayload
	if !s.decodeVoicePayload(w, r, &payload) {
		return
	}

	rec, err := s.applyAndPublish(r.Context(), payload.toEvent())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "discarded"})
		return
	}

	if s.resolver != nil && payload.Status != "" {
		outcome, err := s.resolver.Resolve(r.Context(), rec, payload.Transcript)
		if err != nil {
			s.log.Error().Err(err).Str("call_id", rec.ID).Msg("confirmation resolution failed")
		} else if outcome != nil {
			s.feed.Publish(Event{
				Type:    "confirmation_resolved",
				CallID:  rec.ID,
				OrderID: outcome.OrderID,
				Detail:  outcome.Notes,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_id": rec.ID})
}

// handleTranscript attaches a transcript to an existing call.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var payload voiceCallPayload
	if !s.decodeVoicePayload(w, r, &payload) {
		return
	}
	if payload.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript required")
		return
	}

	ev := payload.toEvent()
	ev.Status = "" // transcript-only update, never moves the lifecycle
	rec, err := s.applyAndPublish(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "discarded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_id": rec.ID})
}

type voiceToolPayload struct {
	CallID    string          `json:"call_id,omitempty"`
	Phone     string          `json:"phone"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// handleVoiceTool executes a tool synchronously for the live voice
// agent mid-call. The response body is the tool result document.
func (s *Server) handleVoiceTool(w http.ResponseWriter, r *http.Request) {
	var payload voiceToolPayload
	if !s.decodeVoicePayload(w, r, &payload) {
		return
	}
	if payload.Tool == "" {
		writeError(w, http.StatusBadRequest, "tool required")
		return
	}

	caller := agent.CallerIdentity{Channel: "voice", Phone: domain.NormalizePhone(payload.Phone)}
	result := s.tools.Execute(r.Context(), caller, payload.Tool, string(payload.Arguments))

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, result)
}

// decodeVoicePayload authenticates and decodes a voice-platform request.
func (s *Server) decodeVoicePayload(w http.ResponseWriter, r *http.Request, target any) bool {
	if !checkBearer(r, s.cfg.Gateway.Auth.VoiceSecret) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("voice webhook auth rejected")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// --- telephony provider ---

// handleTelephonyStatus ingests the telephony provider's form-encoded
// status callback. A DialWhomNumber value means the call was bridged to
// a human agent, which marks the record escalated.
func (s *Server) handleTelephonyStatus(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readSignedForm(w, r)
	if !ok {
		return
	}

	status := form.Get("CallStatus")
	if form.Get("DialWhomNumber") != "" {
		status = "escalated"
	}

	phone := form.Get("From")
	direction := domain.DirectionInbound
	if form.Get("Direction") == "outbound-api" || form.Get("Direction") == "outbound" {
		phone = form.Get("To")
		direction = domain.DirectionOutbound
	}

	ev := voice.CallEvent{
		Source:          voice.SourceTelephony,
		TelephonyCallID: form.Get("CallSid"),
		Phone:           phone,
		Direction:       direction,
		Status:          status,
		RecordingURL:    form.Get("RecordingUrl"),
	}
	if d, err := strconv.Atoi(form.Get("Duration")); err == nil {
		ev.DurationSeconds = d
	}
	if t, err := time.Parse(telephonyTimeFormat, form.Get("StartTime")); err == nil {
		ev.StartedAt = &t
	}
	if t, err := time.Parse(telephonyTimeFormat, form.Get("EndTime")); err == nil {
		ev.EndedAt = &t
	}

	rec, err := s.applyAndPublish(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "discarded"})
		return
	}

	// A missed or failed outbound call still resolves its pending
	// confirmation, as "not answered".
	if s.resolver != nil && status != "" && !voice.Connected(voice.MapStatus(status)) {
		if outcome, rerr := s.resolver.Resolve(r.Context(), rec, ""); rerr != nil {
			s.log.Error().Err(rerr).Str("call_id", rec.ID).Msg("confirmation resolution failed")
		} else if outcome != nil {
			s.feed.Publish(Event{
				Type:    "confirmation_resolved",
				CallID:  rec.ID,
				OrderID: outcome.OrderID,
				Detail:  outcome.Notes,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_id": rec.ID})
}

// handleTelephonyRecording attaches a recording URL to an existing call.
func (s *Server) handleTelephonyRecording(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readSignedForm(w, r)
	if !ok {
		return
	}
	if form.Get("RecordingUrl") == "" {
		writeError(w, http.StatusBadRequest, "RecordingUrl required")
		return
	}

	ev := voice.CallEvent{
		Source:          voice.SourceTelephony,
		TelephonyCallID: form.Get("CallSid"),
		RecordingURL:    form.Get("RecordingUrl"),
	}
	rec, err := s.applyAndPublish(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "discarded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_id": rec.ID})
}

// readSignedForm authenticates a telephony request and parses its body.
func (s *Server) readSignedForm(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	if !VerifySignature(s.cfg.Gateway.Auth.TelephonySecret, body, r.Header.Get("X-Telephony-Signature")) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("telephony webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return nil, false
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return nil, false
	}
	return form, true
}

func (s *Server) applyAndPublish(ctx context.Context, ev voice.CallEvent) (*domain.CallRecord, error) {
	rec, err := s.correlator.ApplyEvent(ctx, ev)
	if err != nil {
		s.log.Error().Err(err).Str("source", ev.Source).Msg("applying call event failed")
		return nil, err
	}
	if rec != nil {
		s.feed.Publish(Event{
			Type:   "call_updated",
			CallID: rec.ID,
			Phone:  rec.Phone,
			Detail: string(rec.Status),
		})
	}
	return rec, nil
}

// --- storefront ---

type confirmRequestPayload struct {
	OrderID      string  `json:"order_id"`
	Phone        string  `json:"phone"`
	ItemsSummary string  `json:"items_summary,omitempty"`
	TotalAmount  float64 `json:"total_amount,omitempty"`
}

// handleOrderConfirmRequest records a pending confirmation and places
// the outbound confirmation call.
func (s *Server) handleOrderConfirmRequest(w http.ResponseWriter, r *http.Request) {
	if !checkBearer(r, s.cfg.Gateway.Auth.Token) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload confirmRequestPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if payload.OrderID == "" || payload.Phone == "" {
		writeError(w, http.StatusBadRequest, "order_id and phone are required")
		return
	}

	phone := domain.NormalizePhone(payload.Phone)
	ttl := time.Duration(s.cfg.Voice.ConfirmationTTLMinutes) * time.Minute
	pc := domain.PendingConfirmation{
		OrderID:       payload.OrderID,
		CustomerPhone: phone,
		ItemsSummary:  payload.ItemsSummary,
		TotalAmount:   payload.TotalAmount,
		ExpiresAt:     time.Now().Add(ttl),
	}
	if err := s.confirmations.Put(r.Context(), pc); err != nil {
		s.log.Error().Err(err).Str("order_id", payload.OrderID).Msg("storing confirmation failed")
		writeError(w, http.StatusInternalServerError, "could not store confirmation")
		return
	}

	resp := map[string]string{"order_id": payload.OrderID}
	if s.caller != nil {
		result, err := s.caller.StartCall(r.Context(), backend.OutboundCallRequest{
			Phone: phone,
			Variables: map[string]string{
				"order_id":      payload.OrderID,
				"items_summary": payload.ItemsSummary,
				"total_amount":  strconv.FormatFloat(payload.TotalAmount, 'f', 2, 64),
			},
		})
		if err != nil {
			// The ledger entry stays; the storefront may retry the call.
			s.log.Error().Err(err).Str("order_id", payload.OrderID).Msg("starting confirmation call failed")
			writeError(w, http.StatusBadGateway, "confirmation stored but call failed")
			return
		}
		resp["call_id"] = result.CallID
	}
	writeJSON(w, http.StatusAccepted, resp)
}
