package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleCall() *domain.CallRecord {
	return &domain.CallRecord{
		ID:          uuid.NewString(),
		VoiceCallID: "vc-" + uuid.NewString(),
		Phone:       "+919876543210",
		Direction:   domain.DirectionOutbound,
		Status:      domain.CallPending,
		StartedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestCallStoreCreateAndFind(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	rec := sampleCall()
	rec.TelephonyCallID = "tel-1"
	rec.Language = "hi"
	require.NoError(t, s.Create(ctx, rec))

	byVoice, err := s.FindByVoiceCallID(ctx, rec.VoiceCallID)
	require.NoError(t, err)
	require.NotNil(t, byVoice)
	assert.Equal(t, rec.ID, byVoice.ID)
	assert.Equal(t, "hi", byVoice.Language)
	assert.Equal(t, domain.CallPending, byVoice.Status)
	assert.True(t, rec.StartedAt.Equal(byVoice.StartedAt))

	byTel, err := s.FindByTelephonyCallID(ctx, "tel-1")
	require.NoError(t, err)
	require.NotNil(t, byTel)
	assert.Equal(t, rec.ID, byTel.ID)

	missing, err := s.FindByVoiceCallID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCallStoreDuplicateCorrelationKey(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	first := sampleCall()
	require.NoError(t, s.Create(ctx, first))

	dup := sampleCall()
	dup.VoiceCallID = first.VoiceCallID
	err := s.Create(ctx, dup)
	require.ErrorIs(t, err, domain.ErrDuplicateCorrelationKey)
}

func TestCallStoreEmptyKeysDoNotCollide(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	// Records created before any external id is known carry NULL keys;
	// the partial unique indexes must allow any number of them.
	for i := 0; i < 3; i++ {
		rec := sampleCall()
		rec.VoiceCallID = ""
		require.NoError(t, s.Create(ctx, rec))
	}
}

func TestCallStoreUpdateBackfill(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	rec := sampleCall()
	rec.VoiceCallID = ""
	rec.TelephonyCallID = "tel-9"
	require.NoError(t, s.Create(ctx, rec))

	rec.VoiceCallID = "vc-9"
	rec.Status = domain.CallResolved
	ended := time.Now().UTC().Truncate(time.Millisecond)
	rec.EndedAt = &ended
	require.NoError(t, s.Update(ctx, rec))

	got, err := s.FindByVoiceCallID(ctx, "vc-9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "tel-9", got.TelephonyCallID)
	assert.Equal(t, domain.CallResolved, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.True(t, ended.Equal(*got.EndedAt))
}

func TestCallStoreConcurrentCreateOneWinner(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)

	const n = 16
	var created, conflicted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := sampleCall()
			rec.VoiceCallID = "vc-shared"
			err := s.Create(context.Background(), rec)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else {
				assert.ErrorIs(t, err, domain.ErrDuplicateCorrelationKey)
				conflicted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicted)
}

func TestTranscripts(t *testing.T) {
	db := openTestDB(t)
	s := NewCallStore(db)
	ctx := context.Background()

	rec := sampleCall()
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, s.SaveTranscript(ctx, domain.CallTranscript{
		CallID: rec.ID, Text: "haan confirm", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.SaveTranscript(ctx, domain.CallTranscript{
		CallID: rec.ID, Text: "theek hai bye", CreatedAt: time.Now(),
	}))

	trs, err := s.Transcripts(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, "haan confirm", trs[0].Text)
}

func TestConfirmationStoreLifecycle(t *testing.T) {
	db := openTestDB(t)
	s := NewConfirmationStore(db)
	ctx := context.Background()

	pc := domain.PendingConfirmation{
		OrderID:       "ORD-1",
		CustomerPhone: "+919876543210",
		ItemsSummary:  "2x Silver Ring",
		TotalAmount:   1998,
		ExpiresAt:     time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Put(ctx, pc))

	// Re-requesting resets the entry rather than failing.
	pc.ExpiresAt = pc.ExpiresAt.Add(time.Hour)
	require.NoError(t, s.Put(ctx, pc))

	list, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2x Silver Ring", list[0].ItemsSummary)
	assert.True(t, pc.ExpiresAt.Equal(list[0].ExpiresAt))

	removed, err := s.Delete(ctx, "ORD-1")
	require.NoError(t, err)
	assert.True(t, removed)

	// Second delete reports the entry was already gone.
	removed, err = s.Delete(ctx, "ORD-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTurnStoreAppendAndRecent(t *testing.T) {
	db := openTestDB(t)
	s := NewTurnStore(db)
	ctx := context.Background()
	key := domain.ConversationKey{Channel: "chat", CustomerPhone: "+919876543210"}

	require.NoError(t, s.Append(ctx, key,
		domain.ConversationTurn{Role: domain.RoleUser, Content: "m1"},
		domain.ConversationTurn{Role: domain.RoleAssistant, Content: "m2"},
		domain.ConversationTurn{Role: domain.RoleUser, Content: "m3"},
	))

	recent, err := s.Recent(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[0].Content)
	assert.Equal(t, "m3", recent[1].Content)

	other := domain.ConversationKey{Channel: "voice", CustomerPhone: "+919876543210"}
	none, err := s.Recent(ctx, other, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
