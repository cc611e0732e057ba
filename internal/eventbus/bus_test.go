package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk/internal/logging"
)

func TestPublish_OrderAndFiltering(t *testing.T) {
	t.Parallel()
	bus := New(logging.Discard())
	ctx := context.Background()

	var got []string
	bus.Subscribe("first", func(_ context.Context, ev Event) error {
		got = append(got, "first:"+string(ev.Type))
		return nil
	})
	bus.Subscribe("created-only", func(_ context.Context, ev Event) error {
		got = append(got, "created:"+string(ev.Type))
		return nil
	}, ComplaintCreatedType)

	bus.Publish(ctx, ComplaintCreated{ComplaintID: uuid.New()})
	bus.Publish(ctx, StatusUpdated{ComplaintID: uuid.New(), OldStatus: "received", NewStatus: "pending_triage"})

	assert.Equal(t, []string{
		"first:complaint.created",
		"created:complaint.created",
		"first:complaint.status_updated",
	}, got)
}

func TestPublish_HandlerFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	bus := New(logging.Discard())

	reached := false
	bus.Subscribe("errs", func(context.Context, Event) error { return errors.New("nope") })
	bus.Subscribe("panics", func(context.Context, Event) error { panic("boom") })
	bus.Subscribe("after", func(context.Context, Event) error {
		reached = true
		return nil
	})

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), ComplaintDeleted{ComplaintID: uuid.New()})
	})
	assert.True(t, reached)
}

func TestSubscription_Close(t *testing.T) {
	t.Parallel()
	bus := New(nil)

	calls := 0
	a := bus.Subscribe("a", func(context.Context, Event) error { calls++; return nil })
	bus.Subscribe("b", func(context.Context, Event) error { calls++; return nil })
	require.Equal(t, 2, bus.Len())

	a.Close()
	a.Close()
	assert.Equal(t, 1, bus.Len())

	bus.Publish(context.Background(), VoiceChunk{SessionID: "s1"})
	assert.Equal(t, 1, calls)
}

func TestPublish_Concurrent(t *testing.T) {
	t.Parallel()
	bus := New(logging.Discard())

	var mu sync.Mutex
	n := 0
	bus.Subscribe("count", func(context.Context, Event) error {
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), VoiceChunk{SessionID: "s"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, n)
}

func TestNewEvent_TypeMatchesPayload(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	tests := []struct {
		payload Payload
		want    EventType
		key     string
	}{
		{ComplaintCreated{ComplaintID: id}, ComplaintCreatedType, id.String()},
		{StatusUpdated{ComplaintID: id}, StatusUpdatedType, id.String()},
		{ComplaintDeleted{ComplaintID: id}, ComplaintDeletedType, id.String()},
		{CallIncoming{ComplaintID: id}, CallIncomingType, id.String()},
		{VoiceChunk{SessionID: "s1"}, VoiceChunkType, "s1"},
		{VoiceTranscript{SessionID: "s2"}, VoiceTranscriptType, "s2"},
	}
	for _, tt := range tests {
		ev := NewEvent(tt.payload)
		assert.Equal(t, tt.want, ev.Type)
		assert.Equal(t, tt.key, ev.Key())
		assert.False(t, ev.At.IsZero())
	}
}

func TestEvent_JSONShape(t *testing.T) {
	t.Parallel()

	ev := NewEvent(StatusUpdated{OldStatus: "received", NewStatus: "rejected", ActorType: "admin"})
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "complaint.status_updated", decoded["type"])
	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rejected", payload["new_status"])
}
