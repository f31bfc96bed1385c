// internal/feed/engine/loopstore.go
package engine

import (
	"context"
	"sync/atomic"

	"feed-sync/internal/feed/loop"
	"feed-sync/internal/store"
)

// loopStore re-posts every subscription callback onto the engine loop and
// drops callbacks that arrive after their subscription was detached.
type loopStore struct {
	store.DocStore
	loop *loop.Loop
}

func (s *loopStore) Subscribe(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	var detached atomic.Bool
	unsub, err := s.DocStore.Subscribe(ctx, q,
		func(docs []store.Document) {
			s.loop.Post(func() {
				if !detached.Load() {
					onSnapshot(docs)
				}
			})
		},
		s.wrapError(&detached, onError),
	)
	if err != nil {
		return nil, err
	}
	return s.detacher(&detached, unsub), nil
}

func (s *loopStore) SubscribeDoc(ctx context.Context, collection, id string, onDoc store.DocFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	var detached atomic.Bool
	unsub, err := s.DocStore.SubscribeDoc(ctx, collection, id,
		func(doc store.Document) {
			s.loop.Post(func() {
				if !detached.Load() {
					onDoc(doc)
				}
			})
		},
		s.wrapError(&detached, onError),
	)
	if err != nil {
		return nil, err
	}
	return s.detacher(&detached, unsub), nil
}

func (s *loopStore) wrapError(detached *atomic.Bool, onError store.ErrorFunc) store.ErrorFunc {
	if onError == nil {
		return nil
	}
	return func(err error) {
		s.loop.Post(func() {
			if !detached.Load() {
				onError(err)
			}
		})
	}
}

func (s *loopStore) detacher(detached *atomic.Bool, unsub store.Unsubscribe) store.Unsubscribe {
	return func() {
		detached.Store(true)
		unsub()
	}
}
