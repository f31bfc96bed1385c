// internal/feed/profile/watcher.go
package profile

import (
	"context"
	"fmt"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/feed/normalize"
	"feed-sync/internal/models"
	"feed-sync/internal/store"
)

const listenerName = "user-profile"

// Watcher follows users/{uid}. Profile fields fill the donor's Response on
// accept/decline and gate the donor view on a complete profile.
type Watcher struct {
	collection string
	store      store.DocStore
	logger     logger.Logger
	onChange   func(models.UserProfile)

	uid     string
	unsub   store.Unsubscribe
	profile models.UserProfile
	exists  bool
	loaded  bool
}

func NewWatcher(collection string, st store.DocStore, log logger.Logger, onChange func(models.UserProfile)) *Watcher {
	if collection == "" {
		collection = "users"
	}
	return &Watcher{
		collection: collection,
		store:      st,
		logger:     logger.Component(log, "profile-watcher"),
		onChange:   onChange,
	}
}

func (w *Watcher) Start(ctx context.Context, uid string) error {
	w.Stop()
	if uid == "" {
		return nil
	}
	w.uid = uid
	unsub, err := w.store.SubscribeDoc(ctx, w.collection, uid,
		func(doc store.Document) {
			if w.uid != uid {
				return
			}
			w.handle(doc)
		},
		func(err error) {
			if w.uid != uid {
				return
			}
			metrics.ListenerErrors.WithLabelValues(listenerName).Inc()
			w.logger.WithError(apperrors.NewListenerFailedError(listenerName, err)).
				Warn("profile listener failed", map[string]interface{}{"uid": uid})
			w.loaded = true
			w.notify()
		},
	)
	if err != nil {
		w.uid = ""
		return fmt.Errorf("attach profile listener: %w", err)
	}
	w.unsub = unsub
	metrics.ListenersActive.WithLabelValues("profile").Inc()
	return nil
}

func (w *Watcher) Stop() {
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
		metrics.ListenersActive.WithLabelValues("profile").Dec()
	}
	w.uid = ""
	w.profile = models.UserProfile{}
	w.exists = false
	w.loaded = false
}

func (w *Watcher) Profile() models.UserProfile {
	return w.profile
}

// Exists reports whether the profile document was present in the last snapshot.
func (w *Watcher) Exists() bool {
	return w.exists
}

// Loaded is true once the profile document was observed (present or not) or
// its listener failed.
func (w *Watcher) Loaded() bool {
	return w.loaded
}

func (w *Watcher) handle(doc store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(listenerName).Inc()
	w.loaded = true
	w.exists = doc.Exists
	w.profile = Decode(doc)
	w.notify()
}

func (w *Watcher) notify() {
	if w.onChange != nil {
		w.onChange(w.profile)
	}
}

// Decode reads a users document. A missing document yields the zero profile.
func Decode(doc store.Document) models.UserProfile {
	if !doc.Exists {
		return models.UserProfile{}
	}
	d := doc.Data
	return models.UserProfile{
		Name:       normalize.Text(d["name"], ""),
		Mobile:     normalize.Text(d["mobile"], ""),
		Phone:      normalize.Text(d["phone"], ""),
		City:       normalize.Text(d["city"], ""),
		BloodGroup: normalize.Text(d["bloodGroup"], ""),
	}
}
