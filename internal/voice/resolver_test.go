package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
)

type memConfirmationStore struct {
	mu      sync.Mutex
	entries map[string]domain.PendingConfirmation
}

func newMemConfirmationStore(entries ...domain.PendingConfirmation) *memConfirmationStore {
	s := &memConfirmationStore{entries: map[string]domain.PendingConfirmation{}}
	for _, e := range entries {
		s.entries[e.OrderID] = e
	}
	return s
}

func (s *memConfirmationStore) Put(_ context.Context, pc domain.PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pc.OrderID] = pc
	return nil
}

func (s *memConfirmationStore) ListPending(_ context.Context) ([]domain.PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PendingConfirmation, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *memConfirmationStore) Delete(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[orderID]; !ok {
		return false, nil
	}
	delete(s.entries, orderID)
	return true, nil
}

type recordedNotification struct {
	orderID   string
	confirmed bool
	notes     string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (f *fakeNotifier) ConfirmOrder(_ context.Context, orderID string, confirmed bool, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotification{orderID, confirmed, notes})
	return nil
}

func pendingFor(orderID, phone string) domain.PendingConfirmation {
	return domain.PendingConfirmation{
		OrderID:       orderID,
		CustomerPhone: phone,
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func resolvedCall(phone string) *domain.CallRecord {
	return &domain.CallRecord{ID: "call-1", Phone: phone, Status: domain.CallResolved}
}

func TestResolveConfirmed(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-1", "+919876543210"))
	notifier := &fakeNotifier{}
	r := NewResolver(store, NewKeywordClassifier(), notifier, logging.Nop())

	outcome, err := r.Resolve(context.Background(), resolvedCall("+919876543210"),
		"haan bilkul, please confirm the order")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "ORD-1", outcome.OrderID)
	assert.True(t, outcome.Confirmed)

	// Entry consumed and storefront notified.
	remaining, _ := store.ListPending(context.Background())
	assert.Empty(t, remaining)
	require.Len(t, notifier.calls, 1)
	assert.True(t, notifier.calls[0].confirmed)
}

func TestResolveRejected(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-2", "+919876543210"))
	r := NewResolver(store, NewKeywordClassifier(), &fakeNotifier{}, logging.Nop())

	outcome, err := r.Resolve(context.Background(), resolvedCall("9876543210"),
		"nahi, cancel the order please")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Confirmed)
	assert.Equal(t, "rejected on call", outcome.Notes)
}

func TestResolveUnclearDefaultsToRejected(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-3", "+919876543210"))
	r := NewResolver(store, NewKeywordClassifier(), &fakeNotifier{}, logging.Nop())

	outcome, err := r.Resolve(context.Background(), resolvedCall("+919876543210"),
		"the weather is nice today")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Confirmed)
	assert.Equal(t, "unclear", outcome.Notes)
}

func TestResolveNotAnsweredSkipsTranscript(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-4", "+919876543210"))
	r := NewResolver(store, NewKeywordClassifier(), &fakeNotifier{}, logging.Nop())

	call := &domain.CallRecord{ID: "call-2", Phone: "+919876543210", Status: domain.CallMissed}
	// Transcript says yes, but the call never connected.
	outcome, err := r.Resolve(context.Background(), call, "yes yes yes confirm")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Confirmed)
	assert.Equal(t, "not answered", outcome.Notes)
}

func TestResolveNoMatchingPending(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-5", "+911111111111"))
	r := NewResolver(store, NewKeywordClassifier(), &fakeNotifier{}, logging.Nop())

	outcome, err := r.Resolve(context.Background(), resolvedCall("+919999999999"), "yes confirm")
	require.NoError(t, err)
	assert.Nil(t, outcome)

	// The unmatched entry stays in the ledger.
	remaining, _ := store.ListPending(context.Background())
	assert.Len(t, remaining, 1)
}

func TestResolveReplayIsNoOp(t *testing.T) {
	store := newMemConfirmationStore(pendingFor("ORD-6", "+919876543210"))
	notifier := &fakeNotifier{}
	r := NewResolver(store, NewKeywordClassifier(), notifier, logging.Nop())

	first, err := r.Resolve(context.Background(), resolvedCall("+919876543210"), "yes")
	require.NoError(t, err)
	require.NotNil(t, first)

	// Replayed completion event: ledger entry already consumed.
	second, err := r.Resolve(context.Background(), resolvedCall("+919876543210"), "yes")
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Len(t, notifier.calls, 1)
}

func TestResolveSkipsExpiredEntries(t *testing.T) {
	expired := domain.PendingConfirmation{
		OrderID:       "ORD-OLD",
		CustomerPhone: "+919876543210",
		ExpiresAt:     time.Now().Add(-time.Minute),
	}
	store := newMemConfirmationStore(expired, pendingFor("ORD-NEW", "+919876543210"))
	r := NewResolver(store, NewKeywordClassifier(), &fakeNotifier{}, logging.Nop())

	outcome, err := r.Resolve(context.Background(), resolvedCall("+919876543210"), "yes confirm")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "ORD-NEW", outcome.OrderID)

	// The expired entry was swept during the scan.
	remaining, _ := store.ListPending(context.Background())
	assert.Empty(t, remaining)
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name       string
		transcript string
		want       Classification
	}{
		{"plain yes", "yes please go ahead", TranscriptConfirmed},
		{"hindi yes", "haan theek hai", TranscriptConfirmed},
		{"plain no", "cancel it", TranscriptRejected},
		{"hindi no", "nahi chahiye", TranscriptRejected},
		{"mixed leaning yes", "yes yes, no problem, confirm", TranscriptConfirmed},
		{"tied counts reject", "yes no", TranscriptRejected},
		{"no signal", "the parcel arrived damaged last month", TranscriptUnclear},
		{"empty", "", TranscriptUnclear},
		{"case insensitive", "YES CONFIRM", TranscriptConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.transcript))
		})
	}
}
