// internal/feed/donormatch/listener.go
package donormatch

import (
	"context"
	"fmt"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/models"
	"feed-sync/internal/store"
)

const listenerName = "donor-match"

// Listener keeps the donor feed in sync with one live query:
// bloodGroup == g AND city == c AND status == pending.
// Not safe for concurrent use; drive it from one goroutine.
type Listener struct {
	config   *Config
	store    store.DocStore
	logger   logger.Logger
	onChange func()

	params     Params
	configured bool
	unsub      store.Unsubscribe
	gen        int
	docs       []store.Document
	items      []models.DonorItem
	removed    map[string]struct{}
	highlight  string
	ready      bool
}

func NewListener(config *Config, st store.DocStore, log logger.Logger, onChange func()) *Listener {
	if config == nil {
		config = LoadConfig()
	}
	return &Listener{
		config:   config,
		store:    st,
		logger:   logger.Component(log, "donor-match"),
		onChange: onChange,
		items:    []models.DonorItem{},
		removed:  map[string]struct{}{},
	}
}

// Configure applies new matching params. Identical params keep the current
// subscription. Incomplete or inactive params leave an empty, ready feed.
func (l *Listener) Configure(ctx context.Context, p Params) error {
	if l.configured && p == l.params && (l.unsub != nil || !p.Complete()) {
		return nil
	}
	l.detach()
	l.configured = true
	l.params = p
	l.gen++
	l.docs = nil
	l.items = []models.DonorItem{}
	l.removed = map[string]struct{}{}

	if !p.Complete() {
		l.ready = true
		l.publish()
		return nil
	}
	l.ready = false

	gen := l.gen
	q := store.NewQuery(l.config.Collection,
		store.Where(models.FieldBloodGroup, p.BloodGroup),
		store.Where(models.FieldCity, p.City),
		store.Where(models.FieldStatus, models.StatusPending),
	)
	unsub, err := l.store.Subscribe(ctx, q,
		func(docs []store.Document) {
			if gen != l.gen {
				return
			}
			l.handleSnapshot(docs)
		},
		func(err error) {
			if gen != l.gen {
				return
			}
			l.handleError(err)
		},
	)
	if err != nil {
		l.ready = true
		l.publish()
		return fmt.Errorf("attach donor match listener: %w", err)
	}
	// An error may already have torn the listener down during Subscribe.
	if gen == l.gen {
		l.unsub = unsub
		metrics.ListenersActive.WithLabelValues("donor").Inc()
	} else {
		unsub()
	}
	l.logger.Debug("donor match listener attached", map[string]interface{}{
		"city":       p.City,
		"bloodGroup": p.BloodGroup,
	})
	return nil
}

// Stop detaches the query and clears the feed.
func (l *Listener) Stop() {
	l.detach()
	l.gen++
	l.configured = false
	l.params = Params{}
	l.docs = nil
	l.items = []models.DonorItem{}
	l.removed = map[string]struct{}{}
	l.highlight = ""
	l.ready = false
}

func (l *Listener) detach() {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
		metrics.ListenersActive.WithLabelValues("donor").Dec()
	}
}

func (l *Listener) Items() []models.DonorItem {
	out := make([]models.DonorItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Listener) Ready() bool {
	return l.ready
}

func (l *Listener) UnseenCount() int {
	return UnseenCount(l.items)
}

func (l *Listener) Params() Params {
	return l.params
}

// Find returns the current item with id.
func (l *Listener) Find(id string) (models.DonorItem, bool) {
	for _, item := range l.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.DonorItem{}, false
}

// RemoveLocal hides id until the next snapshot replaces the list.
func (l *Listener) RemoveLocal(id string) {
	l.removed[id] = struct{}{}
	l.rebuild()
	l.publish()
}

// SetHighlight marks the item with id; "" clears it.
func (l *Listener) SetHighlight(id string) {
	if l.highlight == id {
		return
	}
	l.highlight = id
	l.rebuild()
	l.publish()
}

func (l *Listener) handleSnapshot(docs []store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(listenerName).Inc()
	l.docs = docs
	l.removed = map[string]struct{}{}
	l.ready = true
	l.rebuild()
	l.publish()
}

func (l *Listener) handleError(err error) {
	metrics.ListenerErrors.WithLabelValues(listenerName).Inc()
	l.logger.WithError(apperrors.NewListenerFailedError(listenerName, err)).
		Error("donor match listener failed", map[string]interface{}{
			"city":       l.params.City,
			"bloodGroup": l.params.BloodGroup,
		})
	// The store drops a failed listener; the next Configure re-attaches.
	l.gen++
	l.detach()
	l.docs = nil
	l.items = []models.DonorItem{}
	l.ready = true
	l.publish()
}

func (l *Listener) rebuild() {
	projected := Project(l.docs, l.params.UID, l.highlight, l.config.Now(), l.config.Location)
	items := projected[:0]
	for _, item := range projected {
		if _, hidden := l.removed[item.ID]; !hidden {
			items = append(items, item)
		}
	}
	l.items = items
}

func (l *Listener) publish() {
	metrics.ProjectionItems.WithLabelValues(string(models.RoleDonor)).Set(float64(len(l.items)))
	metrics.UnseenItems.WithLabelValues(string(models.RoleDonor)).Set(float64(l.UnseenCount()))
	if l.onChange != nil {
		l.onChange()
	}
}
