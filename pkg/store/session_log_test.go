package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noetic-systems/noesis/pkg/store"
)

func newLog(t *testing.T) *store.SQLiteSessionLog {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, err := store.NewSQLiteSessionLog(db)
	require.NoError(t, err)
	return log
}

func TestSessionLog_RecordAndLatest(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, log.Record(ctx, store.SessionEvent{
		SessionID: "s1", AgentDID: "did:noesis:agent-1",
		Event: store.EventWake, Timestamp: base,
	}))
	require.NoError(t, log.Record(ctx, store.SessionEvent{
		SessionID: "s1", AgentDID: "did:noesis:agent-1",
		Event: store.EventSleep, Timestamp: base.Add(time.Hour),
	}))

	latest, err := log.Latest(ctx, "did:noesis:agent-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, store.EventSleep, latest.Event)
	assert.Equal(t, "s1", latest.SessionID)
	assert.NotEmpty(t, latest.EventID, "event id must be generated when omitted")
}

func TestSessionLog_LatestEmptyHistory(t *testing.T) {
	log := newLog(t)

	latest, err := log.Latest(context.Background(), "did:noesis:nobody")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSessionLog_ListOrderAndLimit(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i, event := range []string{store.EventWake, store.EventSleep, store.EventWakeFailed} {
		require.NoError(t, log.Record(ctx, store.SessionEvent{
			AgentDID:  "did:noesis:agent-1",
			Event:     event,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := log.List(ctx, "did:noesis:agent-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventWakeFailed, events[0].Event)
	assert.Equal(t, store.EventSleep, events[1].Event)
}

func TestSessionLog_IsolatesAgents(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, store.SessionEvent{
		AgentDID: "did:noesis:agent-1", Event: store.EventWake,
	}))

	events, err := log.List(ctx, "did:noesis:agent-2", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
