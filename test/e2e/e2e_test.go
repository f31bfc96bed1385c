// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/observability"
	"feed-sync/internal/feed/engine"
	"feed-sync/internal/push"
	"feed-sync/internal/store"
)

// The suite runs the engine against the Redis store. It uses an in-process
// miniredis unless E2E_REDIS_ADDRESS points at a real server.

const waitFor = 5 * time.Second

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]push.Message
}

func (n *recordingNotifier) Send(ctx context.Context, token string, msg push.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string][]push.Message{}
	}
	n.sent[token] = append(n.sent[token], msg)
	return nil
}

func (n *recordingNotifier) count(token string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[token])
}

type suite struct {
	store    *store.RedisStore
	redis    *redis.Client
	notifier *recordingNotifier
	log      logger.Logger
}

func setupSuite(t *testing.T) *suite {
	addr := os.Getenv("E2E_REDIS_ADDRESS")
	prefix := "e2e-" + t.Name()
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	log := logger.NewTestLogger(t)
	return &suite{
		store:    store.NewRedisStore(client, sanitize(prefix), log),
		redis:    client,
		notifier: &recordingNotifier{},
		log:      log,
	}
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == '/' || r == ' ' || r == ':' {
			out[i] = '_'
		}
	}
	return string(out)
}

func (s *suite) newEngine(t *testing.T) *engine.Engine {
	tokens := push.NewTokenStore(push.LoadConfig(), nil, s.redis, s.log)
	e := engine.New(engine.LoadConfig(), s.store, engine.Deps{
		Notifier:      s.notifier,
		Tokens:        tokens,
		Observability: observability.NewNoop(),
	}, s.log)
	t.Cleanup(e.Close)
	return e
}

func (s *suite) set(t *testing.T, collection, id string, data map[string]interface{}) {
	require.NoError(t, s.store.Set(context.Background(), collection, id, data))
}

func eventually(t *testing.T, e *engine.Engine, cond func(engine.State) bool, msg string) engine.State {
	var last engine.State
	require.Eventually(t, func() bool {
		st, err := e.State(context.Background())
		if err != nil {
			return false
		}
		last = st
		return cond(st)
	}, waitFor, 20*time.Millisecond, msg)
	return last
}

func (s *suite) seedDonor(t *testing.T) {
	s.set(t, "users", "donor-1", map[string]interface{}{"name": "Ravi", "mobile": "98765", "city": "Pune", "bloodGroup": "O+"})
	s.set(t, "BloodDonors", "dp-1", map[string]interface{}{"uid": "donor-1", "city": "Pune", "bloodGroup": "O+"})
	s.set(t, "Bloodreceiver", "R", map[string]interface{}{
		"uid": "rec-1", "patientName": "Asha", "city": "Pune", "bloodGroup": "O+", "status": "pending",
	})
}

// ==========================
// Donor Scenarios
// ==========================

func TestE2E_DonorSeesMatchingRequest(t *testing.T) {
	s := setupSuite(t)
	s.seedDonor(t)
	e := s.newEngine(t)

	require.NoError(t, e.SetIdentity(context.Background(), "donor-1"))
	st := eventually(t, e, func(st engine.State) bool {
		return st.View == engine.ViewDonor && len(st.DonorItems) == 1
	}, "donor feed never showed the request")

	assert.Equal(t, "R", st.DonorItems[0].ID)
	assert.True(t, st.DonorItems[0].IsNew)
	assert.Equal(t, 1, st.UnseenCount)
}

func TestE2E_DonorAcceptsRequest(t *testing.T) {
	ctx := context.Background()
	s := setupSuite(t)
	s.seedDonor(t)
	require.NoError(t, s.redis.Set(ctx, "push_token:rec-1", "arn:endpoint/rec-1", time.Hour).Err())
	e := s.newEngine(t)

	require.NoError(t, e.SetIdentity(ctx, "donor-1"))
	eventually(t, e, func(st engine.State) bool { return len(st.DonorItems) == 1 }, "request never arrived")

	out, err := e.Accept(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, push.StatusSent, out.PushStatus)

	eventually(t, e, func(st engine.State) bool { return len(st.DonorItems) == 0 }, "accepted request stayed in the feed")

	doc, err := s.store.Get(ctx, "Bloodreceiver", "R")
	require.NoError(t, err)
	responses, ok := doc.Data["responses"].([]interface{})
	require.True(t, ok)
	require.Len(t, responses, 1)
	assert.Equal(t, "accepted", responses[0].(map[string]interface{})["status"])
	assert.Equal(t, "accepted", doc.Data["status"])
	assert.Equal(t, 1, s.notifier.count("arn:endpoint/rec-1"))
}

// ==========================
// Receiver Scenarios
// ==========================

func (s *suite) seedReceiver(t *testing.T) {
	s.set(t, "users", "rec-1", map[string]interface{}{"name": "Asha", "city": "Pune", "bloodGroup": "A+"})
	s.set(t, "Bloodreceiver", "R", map[string]interface{}{
		"uid": "rec-1", "patientName": "Asha", "city": "Pune", "bloodGroup": "A+", "status": "accepted",
		"responses": []interface{}{
			map[string]interface{}{"donorUid": "d1", "donorName": "Ravi", "status": "accepted", "respondedAt": "2026-03-12T08:00:00Z", "seenByReceiver": true},
			map[string]interface{}{"donorUid": "d2", "donorName": "Meena", "status": "declined", "respondedAt": "2026-03-12T08:10:00Z", "seenByReceiver": false},
			map[string]interface{}{"donorUid": "d3", "donorName": "Sam", "status": "", "respondedAt": "2026-03-12T08:20:00Z"},
		},
	})
}

func TestE2E_ReceiverMarksResponsesSeen(t *testing.T) {
	ctx := context.Background()
	s := setupSuite(t)
	s.seedReceiver(t)
	e := s.newEngine(t)

	require.NoError(t, e.SetIdentity(ctx, "rec-1"))
	st := eventually(t, e, func(st engine.State) bool {
		return st.View == engine.ViewReceiver && len(st.ReceiverItems) == 2
	}, "receiver feed never showed the responses")
	assert.Equal(t, 1, st.UnseenCount)

	res, err := e.MarkAllSeen(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ran)

	eventually(t, e, func(st engine.State) bool {
		if len(st.ReceiverItems) != 2 {
			return false
		}
		for _, item := range st.ReceiverItems {
			if !item.SeenByReceiver {
				return false
			}
		}
		return st.UnseenCount == 0
	}, "responses were never marked seen")

	doc, err := s.store.Get(ctx, "Bloodreceiver", "R")
	require.NoError(t, err)
	for _, r := range doc.Data["responses"].([]interface{}) {
		assert.Equal(t, true, r.(map[string]interface{})["seenByReceiver"])
	}
}

func TestE2E_ResponseWithoutStatusIsHidden(t *testing.T) {
	s := setupSuite(t)
	s.seedReceiver(t)
	e := s.newEngine(t)

	require.NoError(t, e.SetIdentity(context.Background(), "rec-1"))
	st := eventually(t, e, func(st engine.State) bool { return len(st.ReceiverItems) == 2 }, "projection never settled")

	for _, item := range st.ReceiverItems {
		assert.NotEqual(t, "Sam", item.DonorName)
	}
}

func TestE2E_DeletedRequestIsEvicted(t *testing.T) {
	ctx := context.Background()
	s := setupSuite(t)
	s.seedReceiver(t)
	s.set(t, "Bloodreceiver", "R2", map[string]interface{}{
		"uid": "rec-1", "city": "Pune", "bloodGroup": "A+", "status": "pending",
		"responses": []interface{}{
			map[string]interface{}{"donorUid": "d9", "donorName": "Nia", "status": "accepted", "respondedAt": "2026-03-12T09:00:00Z"},
		},
	})
	e := s.newEngine(t)

	require.NoError(t, e.SetIdentity(ctx, "rec-1"))
	eventually(t, e, func(st engine.State) bool { return len(st.ReceiverItems) == 3 }, "both requests never projected")

	require.NoError(t, s.store.Delete(ctx, "Bloodreceiver", "R"))
	st := eventually(t, e, func(st engine.State) bool {
		return len(st.Tracked) == 1 && len(st.ReceiverItems) == 1
	}, "deleted request was never evicted")

	assert.Equal(t, []string{"R2"}, st.Tracked)
	assert.Equal(t, "R2", st.ReceiverItems[0].RequestID)
}
