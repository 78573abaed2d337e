package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glintcart/glintbot/internal/agent"
	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/config"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
	"github.com/glintcart/glintbot/internal/voice"
)

type fakeOrchestrator struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
}

func (f *fakeOrchestrator) HandleMessage(_ context.Context, key domain.ConversationKey, text string) (*agent.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key.String()+"|"+text)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Reply{Text: f.reply}, nil
}

type fakeCorrelator struct {
	mu     sync.Mutex
	events []voice.CallEvent
	rec    *domain.CallRecord
}

func (f *fakeCorrelator) ApplyEvent(_ context.Context, ev voice.CallEvent) (*domain.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.rec, nil
}

type fakeResolver struct {
	mu          sync.Mutex
	transcripts []string
	outcome     *domain.ConfirmationOutcome
}

func (f *fakeResolver) Resolve(_ context.Context, _ *domain.CallRecord, transcript string) (*domain.ConfirmationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcript)
	return f.outcome, nil
}

type fakeTools struct {
	lastCaller agent.CallerIdentity
	lastTool   string
	result     string
}

func (f *fakeTools) Execute(_ context.Context, caller agent.CallerIdentity, name, _ string) string {
	f.lastCaller = caller
	f.lastTool = name
	return f.result
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]domain.PendingConfirmation
}

func (f *fakeLedger) Put(_ context.Context, pc domain.PendingConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string]domain.PendingConfirmation{}
	}
	f.entries[pc.OrderID] = pc
	return nil
}

func (f *fakeLedger) ListPending(_ context.Context) ([]domain.PendingConfirmation, error) {
	return nil, nil
}

func (f *fakeLedger) Delete(_ context.Context, _ string) (bool, error) { return false, nil }

type fakeCaller struct {
	started []backend.OutboundCallRequest
}

func (f *fakeCaller) StartCall(_ context.Context, req backend.OutboundCallRequest) (*backend.OutboundCallResult, error) {
	f.started = append(f.started, req)
	return &backend.OutboundCallResult{CallID: "vc-new", Status: "queued"}, nil
}

type fakeChatSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeChatSender) SendText(_ context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+"|"+text)
	return nil
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Gateway.Auth = config.GatewayAuth{
		Token:           "admin-token",
		VoiceSecret:     "voice-secret",
		TelephonySecret: "tel-secret",
		ChatSecret:      "chat-secret",
	}
	return cfg
}

func newTestHandler(t *testing.T, opts ...ServerOption) http.Handler {
	t.Helper()
	s := New(testConfig(), logging.Nop(), opts...)
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChatWebhookRepliesAndDedups(t *testing.T) {
	orch := &fakeOrchestrator{reply: "Hello from Glint!"}
	sender := &fakeChatSender{}
	h := newTestHandler(t, WithOrchestrator(orch), WithChatSender(sender))

	body, _ := json.Marshal(chatWebhookPayload{Messages: []chatMessage{
		{ID: "m1", From: "+919876543210", Text: "hi"},
	}})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/chat", bytes.NewReader(body))
		req.Header.Set("X-Signature", Sign("chat-secret", body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := post()
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, orch.calls, 1)
	assert.Equal(t, "chat:+919876543210|hi", orch.calls[0])
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Hello from Glint!")

	// Redelivery of the same message id is a no-op.
	rr = post()
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, orch.calls, 1)
	assert.Len(t, sender.sent, 1)
}

func TestChatWebhookPassesThroughIDLessMessages(t *testing.T) {
	orch := &fakeOrchestrator{reply: "ok"}
	h := newTestHandler(t, WithOrchestrator(orch), WithChatSender(&fakeChatSender{}))

	post := func(from, text string) {
		body, _ := json.Marshal(chatWebhookPayload{Messages: []chatMessage{
			{From: from, Text: text},
		}})
		req := httptest.NewRequest(http.MethodPost, "/webhook/chat", bytes.NewReader(body))
		req.Header.Set("X-Signature", Sign("chat-secret", body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	// Messages without ids must not collide on a shared dedup key.
	post("+919876543210", "first question")
	post("+919812345678", "second question")

	require.Len(t, orch.calls, 2)
	assert.Equal(t, "chat:+919876543210|first question", orch.calls[0])
	assert.Equal(t, "chat:+919812345678|second question", orch.calls[1])
}

func TestChatWebhookRejectsBadSignature(t *testing.T) {
	orch := &fakeOrchestrator{reply: "hi"}
	h := newTestHandler(t, WithOrchestrator(orch), WithChatSender(&fakeChatSender{}))

	body := []byte(`{"messages":[{"id":"m1","from":"+911","text":"x"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/chat", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, orch.calls)
}

func TestChatWebhookDegradesOnEngineFailure(t *testing.T) {
	orch := &fakeOrchestrator{err: assert.AnError}
	sender := &fakeChatSender{}
	h := newTestHandler(t, WithOrchestrator(orch), WithChatSender(sender))

	body, _ := json.Marshal(chatWebhookPayload{Messages: []chatMessage{
		{ID: "m2", From: "+919876543210", Text: "hi"},
	}})
	req := httptest.NewRequest(http.MethodPost, "/webhook/chat", bytes.NewReader(body))
	req.Header.Set("X-Signature", Sign("chat-secret", body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Sorry")
}

func TestCallCompleteAppliesAndResolves(t *testing.T) {
	rec := &domain.CallRecord{ID: "rec-1", Phone: "+919876543210", Status: domain.CallResolved}
	corr := &fakeCorrelator{rec: rec}
	res := &fakeResolver{outcome: &domain.ConfirmationOutcome{OrderID: "ORD-1", Confirmed: true}}
	h := newTestHandler(t, WithCorrelator(corr), WithResolver(res))

	body, _ := json.Marshal(voiceCallPayload{
		CallID:     "vc-1",
		Phone:      "+919876543210",
		Status:     "completed",
		Transcript: "haan confirm",
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook/voice/call-complete", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer voice-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, corr.events, 1)
	assert.Equal(t, voice.SourceVoicePlatform, corr.events[0].Source)
	assert.Equal(t, "vc-1", corr.events[0].VoiceCallID)
	require.Len(t, res.transcripts, 1)
	assert.Equal(t, "haan confirm", res.transcripts[0])

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "rec-1", resp["call_id"])
}

func TestCallCompleteRequiresAuth(t *testing.T) {
	h := newTestHandler(t, WithCorrelator(&fakeCorrelator{}))
	req := httptest.NewRequest(http.MethodPost, "/webhook/voice/call-complete", strings.NewReader("{}"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTranscriptNeverMovesLifecycle(t *testing.T) {
	corr := &fakeCorrelator{rec: &domain.CallRecord{ID: "rec-1"}}
	h := newTestHandler(t, WithCorrelator(corr))

	body, _ := json.Marshal(voiceCallPayload{CallID: "vc-1", Status: "completed", Transcript: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/webhook/voice/transcript", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer voice-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, corr.events, 1)
	assert.Empty(t, corr.events[0].Status)
	assert.Equal(t, "hello", corr.events[0].Transcript)
}

func TestVoiceToolExecutes(t *testing.T) {
	tools := &fakeTools{result: `{"status":"shipped"}`}
	h := newTestHandler(t, WithTools(tools))

	body := []byte(`{"phone":"9876543210","tool":"get_order_status","arguments":{"order_id":"ORD-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/voice/tool", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer voice-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"shipped"}`, rr.Body.String())
	assert.Equal(t, "voice", tools.lastCaller.Channel)
	assert.Equal(t, "+919876543210", tools.lastCaller.Phone)
	assert.Equal(t, "get_order_status", tools.lastTool)
}

func postTelephony(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	body := form.Encode()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Telephony-Signature", Sign("tel-secret", []byte(body)))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTelephonyStatusEscalationDetection(t *testing.T) {
	corr := &fakeCorrelator{rec: &domain.CallRecord{ID: "rec-1", Status: domain.CallEscalated}}
	h := newTestHandler(t, WithCorrelator(corr))

	rr := postTelephony(t, h, "/webhook/telephony", url.Values{
		"CallSid":        {"tel-1"},
		"From":           {"09876543210"},
		"CallStatus":     {"completed"},
		"DialWhomNumber": {"+918888888888"},
		"Duration":       {"95"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, corr.events, 1)
	ev := corr.events[0]
	assert.Equal(t, "escalated", ev.Status)
	assert.Equal(t, "tel-1", ev.TelephonyCallID)
	assert.Equal(t, "09876543210", ev.Phone)
	assert.Equal(t, 95, ev.DurationSeconds)
}

func TestTelephonyMissedCallResolvesNotAnswered(t *testing.T) {
	corr := &fakeCorrelator{rec: &domain.CallRecord{ID: "rec-1", Phone: "+919876543210", Status: domain.CallMissed}}
	res := &fakeResolver{outcome: &domain.ConfirmationOutcome{OrderID: "ORD-1", Notes: "not answered"}}
	h := newTestHandler(t, WithCorrelator(corr), WithResolver(res))

	rr := postTelephony(t, h, "/webhook/telephony", url.Values{
		"CallSid":    {"tel-2"},
		"To":         {"9876543210"},
		"Direction":  {"outbound-api"},
		"CallStatus": {"no-answer"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, res.transcripts, 1)
	assert.Empty(t, res.transcripts[0])

	require.Len(t, corr.events, 1)
	assert.Equal(t, domain.DirectionOutbound, corr.events[0].Direction)
	assert.Equal(t, "9876543210", corr.events[0].Phone)
}

func TestTelephonyRejectsBadSignature(t *testing.T) {
	h := newTestHandler(t, WithCorrelator(&fakeCorrelator{}))
	req := httptest.NewRequest(http.MethodPost, "/webhook/telephony", strings.NewReader("CallSid=x"))
	req.Header.Set("X-Telephony-Signature", "bad")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTelephonyRecording(t *testing.T) {
	corr := &fakeCorrelator{rec: &domain.CallRecord{ID: "rec-1"}}
	h := newTestHandler(t, WithCorrelator(corr))

	rr := postTelephony(t, h, "/webhook/telephony/recording", url.Values{
		"CallSid":      {"tel-1"},
		"RecordingUrl": {"https://rec/tel-1.mp3"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, corr.events, 1)
	assert.Equal(t, "https://rec/tel-1.mp3", corr.events[0].RecordingURL)
	assert.Empty(t, corr.events[0].Status)
}

func TestOrderConfirmRequest(t *testing.T) {
	ledger := &fakeLedger{}
	caller := &fakeCaller{}
	h := newTestHandler(t, WithConfirmations(ledger), WithOutboundCaller(caller))

	body := []byte(`{"order_id":"ORD-7","phone":"9876543210","items_summary":"1x Ring","total_amount":999}`)
	req := httptest.NewRequest(http.MethodPost, "/orders/confirm", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, ledger.entries, "ORD-7")
	assert.Equal(t, "+919876543210", ledger.entries["ORD-7"].CustomerPhone)
	require.Len(t, caller.started, 1)
	assert.Equal(t, "+919876543210", caller.started[0].Phone)
	assert.Equal(t, "ORD-7", caller.started[0].Variables["order_id"])

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "vc-new", resp["call_id"])
}

func TestOrderConfirmRequiresAuth(t *testing.T) {
	h := newTestHandler(t, WithConfirmations(&fakeLedger{}))
	req := httptest.NewRequest(http.MethodPost, "/orders/confirm", strings.NewReader("{}"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerifySignature(t *testing.T) {
	body := []byte("payload")
	sig := Sign("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("secret", body, "wrong"))
	assert.False(t, VerifySignature("secret", []byte("tampered"), sig))
	assert.False(t, VerifySignature("", body, sig))
	assert.False(t, VerifySignature("secret", body, ""))
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.True(t, safeEqual("", ""))
}
