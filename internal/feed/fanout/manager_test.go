package fanout

import (
	"context"
	"errors"
	"testing"

	"feed-sync/internal/common/logger"
	"feed-sync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*Manager, *store.MemoryStore, *int) {
	s := store.NewMemoryStore()
	publishes := 0
	m := NewManager(LoadConfig(), s, logger.NewTestLogger(t), func() { publishes++ })
	return m, s, &publishes
}

func ownRequest(extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{"uid": "rec-1", "city": "Pune", "bloodGroup": "O+", "status": "pending"}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func TestManager_AttachesOneChildPerRequest(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r2", ownRequest(nil)))
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "foreign", map[string]interface{}{"uid": "someone"}))

	require.NoError(t, m.Start(ctx, "rec-1"))

	assert.True(t, m.Ready())
	assert.True(t, m.HasRequests())
	assert.Equal(t, []string{"r1", "r2"}, m.TrackedIDs())
	assert.ElementsMatch(t, []string{"r1", "r2"}, s.DocListenerIDs("Bloodreceiver"))
	assert.Len(t, m.Fragments(), 2)
}

func TestManager_AddRemoveFollowsParentSnapshot(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, m.Start(ctx, "rec-1"))

	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r2", ownRequest(nil)))
	assert.Equal(t, []string{"r1", "r2"}, m.TrackedIDs())

	// Ownership moving away removes the request from Tier 1.
	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r1", map[string]interface{}{"uid": "someone"}))
	assert.Equal(t, []string{"r2"}, m.TrackedIDs())
	assert.Equal(t, []string{"r2"}, s.DocListenerIDs("Bloodreceiver"))

	require.NoError(t, s.Delete(ctx, "Bloodreceiver", "r2"))
	assert.Empty(t, m.TrackedIDs())
	assert.Empty(t, m.Fragments())
	assert.False(t, m.HasRequests())
	assert.Equal(t, 1, s.ListenerCount(), "only Tier 1 remains")
}

func TestManager_ChildUpdatesRefreshFragment(t *testing.T) {
	ctx := context.Background()
	m, s, publishes := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, m.Start(ctx, "rec-1"))
	before := *publishes

	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r1", map[string]interface{}{
		"responses": store.ArrayUnion(map[string]interface{}{"donorUid": "d1", "status": "accepted"}),
	}))

	f, ok := m.Fragment("r1")
	require.True(t, ok)
	assert.Len(t, f.Responses(), 1)
	assert.Greater(t, *publishes, before)
}

func TestManager_ParentErrorDetachesEverything(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, m.Start(ctx, "rec-1"))

	s.FailListeners("Bloodreceiver", errors.New("permission-denied"))

	assert.True(t, m.Ready())
	assert.False(t, m.HasRequests())
	assert.Empty(t, m.Fragments())
	assert.Equal(t, 0, s.ListenerCount())
}

func TestManager_ChildErrorReattachesOnNextParentFire(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r2", ownRequest(nil)))
	require.NoError(t, m.Start(ctx, "rec-1"))

	s.FailDoc("Bloodreceiver", "r1", errors.New("unavailable"))

	assert.Equal(t, []string{"r2"}, m.TrackedIDs())
	assert.Equal(t, []string{"r2"}, s.DocListenerIDs("Bloodreceiver"))
	f, ok := m.Fragment("r1")
	require.True(t, ok, "failed slot keeps its last fragment")
	assert.Equal(t, "Pune", f.Data["city"])
	assert.Len(t, m.Fragments(), 2)
	assert.True(t, m.HasRequests())

	// Any Tier-1 delivery re-attaches the failed slot.
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r3", ownRequest(nil)))

	assert.Equal(t, []string{"r1", "r2", "r3"}, m.TrackedIDs())
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, s.DocListenerIDs("Bloodreceiver"))

	require.NoError(t, s.Update(ctx, "Bloodreceiver", "r1", map[string]interface{}{"city": "Nashik"}))
	f, ok = m.Fragment("r1")
	require.True(t, ok)
	assert.Equal(t, "Nashik", f.Data["city"])
}

func TestManager_StopAndIdentitySwitch(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupManager(t)
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "r1", ownRequest(nil)))
	require.NoError(t, s.Set(ctx, "Bloodreceiver", "x1", map[string]interface{}{"uid": "rec-2"}))

	require.NoError(t, m.Start(ctx, "rec-1"))
	require.NoError(t, m.Start(ctx, "rec-2"))
	assert.Equal(t, []string{"x1"}, m.TrackedIDs())
	assert.Equal(t, 2, s.ListenerCount())

	m.Stop()
	assert.Equal(t, 0, s.ListenerCount())
	assert.Empty(t, m.Fragments())
	assert.False(t, m.Ready())

	require.NoError(t, s.Set(ctx, "Bloodreceiver", "x2", map[string]interface{}{"uid": "rec-2"}))
	assert.Empty(t, m.TrackedIDs())
}

func TestManager_EmptyParentIsReady(t *testing.T) {
	m, s, publishes := setupManager(t)
	require.NoError(t, m.Start(context.Background(), "rec-1"))

	assert.True(t, m.Ready())
	assert.False(t, m.HasRequests())
	assert.Equal(t, 1, *publishes)
	assert.Equal(t, 1, s.ListenerCount())
}
