// internal/feed/fanout/manager.go
package fanout

import (
	"context"
	"fmt"
	"sort"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/models"
	"feed-sync/internal/store"
)

const (
	listenerParent = "fanout-parent"
	listenerChild  = "fanout-child"

	tierParent = "fanout-parent"
	tierChild  = "fanout-child"
)

type entry struct {
	detach   store.Unsubscribe
	fragment *models.Fragment
}

// Manager runs the two-tier receiver listeners. Tier 1 is a live query for
// the identity's own Requests; Tier 2 is one point subscription per Request
// id in the latest Tier-1 snapshot. The registry is the sole owner of every
// Tier-2 listener. Not safe for concurrent use; drive it from one goroutine.
type Manager struct {
	config   *Config
	store    store.DocStore
	logger   logger.Logger
	onChange func()

	ctx         context.Context
	uid         string
	gen         int
	parent      store.Unsubscribe
	entries     map[string]*entry
	ready       bool
	hasRequests bool
}

func NewManager(config *Config, st store.DocStore, log logger.Logger, onChange func()) *Manager {
	if config == nil {
		config = LoadConfig()
	}
	return &Manager{
		config:   config,
		store:    st,
		logger:   logger.Component(log, "fanout"),
		onChange: onChange,
		entries:  make(map[string]*entry),
	}
}

// Start tears down everything and attaches Tier 1 for uid.
func (m *Manager) Start(ctx context.Context, uid string) error {
	m.Stop()
	if uid == "" {
		return nil
	}
	m.ctx = ctx
	m.uid = uid
	gen := m.gen

	unsub, err := m.store.Subscribe(ctx,
		store.NewQuery(m.config.Collection, store.Where(models.FieldUID, uid)),
		func(docs []store.Document) {
			if gen != m.gen {
				return
			}
			m.handleParent(docs)
		},
		func(err error) {
			if gen != m.gen {
				return
			}
			m.handleParentError(err)
		},
	)
	if err != nil {
		m.Stop()
		return fmt.Errorf("attach receiver requests listener: %w", err)
	}
	if gen != m.gen {
		unsub()
		return nil
	}
	m.parent = unsub
	metrics.ListenersActive.WithLabelValues(tierParent).Inc()
	return nil
}

// Stop detaches Tier 1 and every Tier-2 listener and clears the cache.
func (m *Manager) Stop() {
	m.gen++
	if m.parent != nil {
		m.parent()
		m.parent = nil
		metrics.ListenersActive.WithLabelValues(tierParent).Dec()
	}
	m.detachAll()
	m.uid = ""
	m.ctx = nil
	m.ready = false
	m.hasRequests = false
}

func (m *Manager) Ready() bool {
	return m.ready
}

func (m *Manager) HasRequests() bool {
	return m.hasRequests
}

// TrackedIDs returns the ids with a live Tier-2 listener, sorted. A slot
// whose child listener failed keeps its fragment but is not listed.
func (m *Manager) TrackedIDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id, e := range m.entries {
		if e.detach != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) slotIDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fragments returns every cached fragment, ordered by request id.
func (m *Manager) Fragments() []models.Fragment {
	out := make([]models.Fragment, 0, len(m.entries))
	for _, id := range m.slotIDs() {
		if f := m.entries[id].fragment; f != nil {
			out = append(out, *f)
		}
	}
	return out
}

// Fragment returns the cached body of one request.
func (m *Manager) Fragment(id string) (models.Fragment, bool) {
	e, ok := m.entries[id]
	if !ok || e.fragment == nil {
		return models.Fragment{}, false
	}
	return *e.fragment, true
}

func (m *Manager) handleParent(docs []store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(listenerParent).Inc()
	m.ready = true

	if len(docs) == 0 {
		m.detachAll()
		m.hasRequests = false
		m.publish()
		return
	}
	m.hasRequests = true

	current := make(map[string]store.Document, len(docs))
	for _, d := range docs {
		current[d.ID] = d
	}

	for id := range m.entries {
		if _, ok := current[id]; !ok {
			m.evict(id)
		}
	}

	for _, d := range docs {
		if e, ok := m.entries[d.ID]; ok && e.detach != nil {
			e.fragment = &models.Fragment{RequestID: d.ID, Data: d.Data}
			continue
		}
		// New id, or a slot whose child listener failed: (re)attach.
		m.attach(d)
	}

	m.logger.Debug("receiver requests reconciled", map[string]interface{}{
		"uid":     m.uid,
		"tracked": len(m.entries),
	})
	m.publish()
}

func (m *Manager) handleParentError(err error) {
	metrics.ListenerErrors.WithLabelValues(listenerParent).Inc()
	m.logger.WithError(apperrors.NewListenerFailedError(listenerParent, err)).
		Error("receiver requests listener failed", map[string]interface{}{"uid": m.uid})

	if m.parent != nil {
		m.parent()
		m.parent = nil
		metrics.ListenersActive.WithLabelValues(tierParent).Dec()
	}
	m.gen++
	m.detachAll()
	m.ready = true
	m.hasRequests = false
	m.publish()
}

// attach seeds the slot from the Tier-1 body and registers it before the
// child listener exists, so an immediate first delivery finds its slot.
func (m *Manager) attach(d store.Document) {
	id := d.ID
	e := &entry{fragment: &models.Fragment{RequestID: id, Data: d.Data}}
	m.entries[id] = e

	unsub, err := m.store.SubscribeDoc(m.ctx, m.config.Collection, id,
		func(doc store.Document) {
			if m.entries[id] != e {
				return
			}
			m.handleChild(id, doc)
		},
		func(err error) {
			if m.entries[id] != e {
				return
			}
			m.handleChildError(id, err)
		},
	)
	if err != nil {
		m.logger.WithError(err).Warn("request listener attach failed", map[string]interface{}{"requestId": id})
		return
	}
	if m.entries[id] != e {
		unsub()
		return
	}
	e.detach = unsub
	metrics.ListenersActive.WithLabelValues(tierChild).Inc()
}

func (m *Manager) handleChild(id string, doc store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(listenerChild).Inc()
	if !doc.Exists {
		m.evict(id)
		m.publish()
		return
	}
	m.entries[id].fragment = &models.Fragment{RequestID: id, Data: doc.Data}
	m.publish()
}

// handleChildError keeps the cached slot; the next Tier-1 fire re-attaches it.
func (m *Manager) handleChildError(id string, err error) {
	metrics.ListenerErrors.WithLabelValues(listenerChild).Inc()
	m.logger.WithError(apperrors.NewListenerFailedError(listenerChild, err)).
		Warn("request listener failed", map[string]interface{}{"requestId": id})
	if e := m.entries[id]; e != nil && e.detach != nil {
		e.detach()
		e.detach = nil
		metrics.ListenersActive.WithLabelValues(tierChild).Dec()
	}
}

func (m *Manager) evict(id string) {
	e, ok := m.entries[id]
	if !ok {
		return
	}
	if e.detach != nil {
		e.detach()
		metrics.ListenersActive.WithLabelValues(tierChild).Dec()
	}
	delete(m.entries, id)
}

func (m *Manager) detachAll() {
	for id := range m.entries {
		m.evict(id)
	}
}

func (m *Manager) publish() {
	if m.onChange != nil {
		m.onChange()
	}
}
