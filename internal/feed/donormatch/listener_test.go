package donormatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"feed-sync/internal/common/logger"
	"feed-sync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupListener(t *testing.T) (*Listener, *store.MemoryStore, *int) {
	s := store.NewMemoryStore()
	cfg := LoadConfig()
	cfg.Location = time.UTC
	cfg.Now = func() time.Time { return testNow }
	changes := 0
	l := NewListener(cfg, s, logger.NewTestLogger(t), func() { changes++ })
	return l, s, &changes
}

var donorParams = Params{UID: "donor-1", City: "Pune", BloodGroup: "O+", Active: true}

func TestListener_IncompleteParamsStayEmpty(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{name: "inactive", params: Params{UID: "d", City: "Pune", BloodGroup: "O+"}},
		{name: "no city", params: Params{UID: "d", BloodGroup: "O+", Active: true}},
		{name: "no group", params: Params{UID: "d", City: "Pune", Active: true}},
		{name: "no uid", params: Params{City: "Pune", BloodGroup: "O+", Active: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, s, _ := setupListener(t)
			require.NoError(t, l.Configure(context.Background(), tt.params))
			assert.Empty(t, l.Items())
			assert.Equal(t, 0, l.UnseenCount())
			assert.True(t, l.Ready())
			assert.Equal(t, 0, s.ListenerCount())
		})
	}
}

func TestListener_TracksMatchingPendingRequests(t *testing.T) {
	ctx := context.Background()
	l, s, _ := setupListener(t)

	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", map[string]interface{}{
		"uid": "rec", "city": "Pune", "bloodGroup": "O+", "status": "pending",
	}))
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "other-city", map[string]interface{}{
		"uid": "rec", "city": "Mumbai", "bloodGroup": "O+", "status": "pending",
	}))

	require.NoError(t, l.Configure(ctx, donorParams))
	require.True(t, l.Ready())
	require.Len(t, l.Items(), 1)
	assert.Equal(t, 1, l.UnseenCount())

	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r1", map[string]interface{}{
		"seenBy": store.ArrayUnion("donor-1"),
	}))
	assert.Equal(t, 0, l.UnseenCount())

	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r1", map[string]interface{}{"status": "accepted"}))
	assert.Empty(t, l.Items())
}

func TestListener_IdenticalParamsKeepSubscription(t *testing.T) {
	ctx := context.Background()
	l, s, changes := setupListener(t)

	require.NoError(t, l.Configure(ctx, donorParams))
	before := *changes
	require.NoError(t, l.Configure(ctx, donorParams))
	assert.Equal(t, before, *changes)
	assert.Equal(t, 1, s.ListenerCount())

	moved := donorParams
	moved.City = "Mumbai"
	require.NoError(t, l.Configure(ctx, moved))
	assert.Equal(t, 1, s.ListenerCount())
}

func TestListener_RemoveLocalLastsOneSnapshot(t *testing.T) {
	ctx := context.Background()
	l, s, _ := setupListener(t)
	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, s.Set(ctx, "Bloodreceiver", id, map[string]interface{}{
			"uid": "rec", "city": "Pune", "bloodGroup": "O+", "status": "pending",
		}))
	}
	require.NoError(t, l.Configure(ctx, donorParams))

	l.RemoveLocal("r1")
	require.Len(t, l.Items(), 1)
	_, found := l.Find("r1")
	assert.False(t, found)

	// A snapshot that still carries r1 brings it back: the overlay is not sticky.
	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r2", map[string]interface{}{"purpose": "surgery"}))
	assert.Len(t, l.Items(), 2)
}

func TestListener_ErrorClearsAndReadies(t *testing.T) {
	ctx := context.Background()
	l, s, _ := setupListener(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", map[string]interface{}{
		"uid": "rec", "city": "Pune", "bloodGroup": "O+", "status": "pending",
	}))
	require.NoError(t, l.Configure(ctx, donorParams))
	require.Len(t, l.Items(), 1)

	s.FailListeners("Bloodreceiver", errors.New("permission-denied"))
	assert.Empty(t, l.Items())
	assert.True(t, l.Ready())

	require.NoError(t, l.Configure(ctx, donorParams))
	assert.Len(t, l.Items(), 1, "same params re-attach after a failure")
}

func TestListener_HighlightAndStop(t *testing.T) {
	ctx := context.Background()
	l, s, _ := setupListener(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", map[string]interface{}{
		"uid": "rec", "city": "Pune", "bloodGroup": "O+", "status": "pending",
	}))
	require.NoError(t, l.Configure(ctx, donorParams))

	l.SetHighlight("r1")
	item, ok := l.Find("r1")
	require.True(t, ok)
	assert.True(t, item.IsHighlighted)

	l.Stop()
	assert.Empty(t, l.Items())
	assert.False(t, l.Ready())
	assert.Equal(t, 0, s.ListenerCount())
}
