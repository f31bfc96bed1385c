// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-process DocStore. Snapshots are delivered synchronously
// on the writing goroutine after the store lock is released. A callback must
// not write to a document that its own subscription observes.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
	listeners   map[int64]*memListener
	nextID      int64
	version     int64
	now         func() time.Time

	// failures injects errors for tests, keyed by "collection/id" or "collection".
	failures map[string]error
}

type memListener struct {
	id         int64
	query      *Query
	collection string
	docID      string
	onSnapshot SnapshotFunc
	onDoc      DocFunc
	onError    ErrorFunc

	deliverMu sync.Mutex
	delivered int64
	closed    atomic.Bool
}

type delivery struct {
	listener *memListener
	version  int64
	docs     []Document
	doc      Document
	err      error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		listeners:   make(map[int64]*memListener),
		failures:    make(map[string]error),
		now:         time.Now,
	}
}

// SetClock overrides the clock used for server timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailUpdates makes every Update on collection/id (or the whole collection when
// id is empty) return err. Pass nil to clear.
func (s *MemoryStore) FailUpdates(collection, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := collection
	if id != "" {
		key = collection + "/" + id
	}
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// FailListeners delivers err to every live subscription on collection and
// removes them, the way a revoked permission tears down a listener.
func (s *MemoryStore) FailListeners(collection string, err error) {
	s.mu.Lock()
	var pending []delivery
	for id, l := range s.listeners {
		if l.collection != collection {
			continue
		}
		delete(s.listeners, id)
		pending = append(pending, delivery{listener: l, err: err})
	}
	s.mu.Unlock()
	dispatch(pending)
}

// FailDoc delivers err to the point subscriptions on one document and
// removes them. Query subscriptions on the collection stay live.
func (s *MemoryStore) FailDoc(collection, id string, err error) {
	s.mu.Lock()
	var pending []delivery
	for key, l := range s.listeners {
		if l.query != nil || l.collection != collection || l.docID != id {
			continue
		}
		delete(s.listeners, key)
		pending = append(pending, delivery{listener: l, err: err})
	}
	s.mu.Unlock()
	dispatch(pending)
}

// ListenerCount returns the number of live subscriptions.
func (s *MemoryStore) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// DocListenerIDs returns the document ids with a live point subscription on collection.
func (s *MemoryStore) DocListenerIDs(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, l := range s.listeners {
		if l.query == nil && l.collection == collection {
			ids = append(ids, l.docID)
		}
	}
	return ids
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if onSnapshot == nil {
		return nil, fmt.Errorf("subscribe %s: nil snapshot callback", q)
	}
	qc := q
	s.mu.Lock()
	l := s.addListenerLocked(&memListener{query: &qc, collection: q.Collection, onSnapshot: onSnapshot, onError: onError})
	initial := delivery{listener: l, version: s.version, docs: s.queryLocked(qc)}
	s.mu.Unlock()

	dispatch([]delivery{initial})
	return s.unsubscriber(l), nil
}

func (s *MemoryStore) SubscribeDoc(ctx context.Context, collection, id string, onDoc DocFunc, onError ErrorFunc) (Unsubscribe, error) {
	if onDoc == nil {
		return nil, fmt.Errorf("subscribe %s/%s: nil document callback", collection, id)
	}
	s.mu.Lock()
	l := s.addListenerLocked(&memListener{collection: collection, docID: id, onDoc: onDoc, onError: onError})
	initial := delivery{listener: l, version: s.version, doc: s.docLocked(collection, id)}
	s.mu.Unlock()

	dispatch([]delivery{initial})
	return s.unsubscriber(l), nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docLocked(collection, id)
	if !doc.Exists {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.failureLocked(collection, id); err != nil {
		s.mu.Unlock()
		return err
	}
	current, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	next, err := ApplyUpdate(current, fields, s.now())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.collections[collection][id] = next
	pending := s.changedLocked(collection, id)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	normalized, err := NormalizeData(data)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]interface{})
	}
	s.collections[collection][id] = normalized
	pending := s.changedLocked(collection, id)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.collections[collection], id)
	pending := s.changedLocked(collection, id)
	s.mu.Unlock()

	dispatch(pending)
	return nil
}

func (s *MemoryStore) addListenerLocked(l *memListener) *memListener {
	s.nextID++
	l.id = s.nextID
	s.listeners[l.id] = l
	return l
}

func (s *MemoryStore) unsubscriber(l *memListener) Unsubscribe {
	return func() {
		l.closed.Store(true)
		s.mu.Lock()
		delete(s.listeners, l.id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) failureLocked(collection, id string) error {
	if err, ok := s.failures[collection+"/"+id]; ok {
		return err
	}
	return s.failures[collection]
}

func (s *MemoryStore) queryLocked(q Query) []Document {
	docs := make([]Document, 0)
	for id, data := range s.collections[q.Collection] {
		if q.Matches(data) {
			docs = append(docs, Document{ID: id, Data: CloneData(data), Exists: true})
		}
	}
	sortDocs(docs)
	return docs
}

func (s *MemoryStore) docLocked(collection, id string) Document {
	data, ok := s.collections[collection][id]
	if !ok {
		return Document{ID: id}
	}
	return Document{ID: id, Data: CloneData(data), Exists: true}
}

// changedLocked computes the snapshots owed to every listener affected by a
// change to collection/id. Query listeners are notified on every change to the
// collection since membership may have flipped either way.
func (s *MemoryStore) changedLocked(collection, id string) []delivery {
	s.version++
	var pending []delivery
	for _, l := range s.listeners {
		if l.collection != collection {
			continue
		}
		if l.query != nil {
			pending = append(pending, delivery{listener: l, version: s.version, docs: s.queryLocked(*l.query)})
			continue
		}
		if l.docID == id {
			pending = append(pending, delivery{listener: l, version: s.version, doc: s.docLocked(collection, id)})
		}
	}
	return pending
}

// dispatch invokes callbacks outside the store lock. A snapshot older than one
// already delivered to the same listener is dropped.
func dispatch(pending []delivery) {
	for _, d := range pending {
		l := d.listener
		l.deliverMu.Lock()
		if l.closed.Load() || (d.err == nil && d.version < l.delivered) {
			l.deliverMu.Unlock()
			continue
		}
		if d.err != nil {
			l.closed.Store(true)
			if l.onError != nil {
				l.onError(d.err)
			}
			l.deliverMu.Unlock()
			continue
		}
		l.delivered = d.version
		if l.query != nil {
			l.onSnapshot(d.docs)
		} else {
			l.onDoc(d.doc)
		}
		l.deliverMu.Unlock()
	}
}
