// internal/feed/role/resolver.go
package role

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

// Resolve applies the role precedence: any receiver Request wins over a donor
// profile.
func Resolve(hasReceiver, hasDonor bool) models.Role {
	switch {
	case hasReceiver:
		return models.RoleReceiver
	case hasDonor:
		return models.RoleDonor
	default:
		return models.RoleNone
	}
}

// Resolver derives the role from two live subscriptions scoped to one identity:
// Requests authored by it and its DonorProfile. Not safe for concurrent use;
// drive it from one goroutine.
type Resolver struct {
	config   *Config
	store    store.DocStore
	logger   logger.Logger
	onChange func(State)

	uid            string
	unsubReceiver  store.Unsubscribe
	unsubDonor     store.Unsubscribe
	receiverLoaded bool
	donorLoaded    bool
	state          State
}

func NewResolver(config *Config, st store.DocStore, log logger.Logger, onChange func(State)) *Resolver {
	if config == nil {
		config = LoadConfig()
	}
	return &Resolver{
		config:   config,
		store:    st,
		logger:   logger.Component(log, "role-resolver"),
		onChange: onChange,
	}
}

// Start detaches any previous subscriptions and attaches both for uid, or only
// the donor one when the receiver signal is external. An empty uid leaves the
// resolver stopped with role none.
func (r *Resolver) Start(ctx context.Context, uid string) error {
	r.Stop()
	if uid == "" {
		r.publish()
		return nil
	}
	r.uid = uid

	if !r.config.ExternalReceiverSignal {
		unsubReceiver, err := r.store.Subscribe(ctx,
			store.NewQuery(r.config.RequestsCollection, store.Where(models.FieldUID, uid)),
			r.guard(uid, r.handleReceiverSnapshot),
			r.guardErr(uid, ListenerReceiver, r.handleReceiverError),
		)
		if err != nil {
			r.Stop()
			return fmt.Errorf("attach receiver signal: %w", err)
		}
		r.unsubReceiver = unsubReceiver
		metrics.ListenersActive.WithLabelValues("role").Inc()
	}

	unsubDonor, err := r.store.Subscribe(ctx,
		store.NewQuery(r.config.DonorsCollection, store.Where(models.FieldUID, uid)),
		r.guard(uid, r.handleDonorSnapshot),
		r.guardErr(uid, ListenerDonor, r.handleDonorError),
	)
	if err != nil {
		r.Stop()
		return fmt.Errorf("attach donor signal: %w", err)
	}
	r.unsubDonor = unsubDonor
	metrics.ListenersActive.WithLabelValues("role").Inc()
	return nil
}

// Stop detaches both subscriptions and resets to role none.
func (r *Resolver) Stop() {
	if r.unsubReceiver != nil {
		r.unsubReceiver()
		r.unsubReceiver = nil
		metrics.ListenersActive.WithLabelValues("role").Dec()
	}
	if r.unsubDonor != nil {
		r.unsubDonor()
		r.unsubDonor = nil
		metrics.ListenersActive.WithLabelValues("role").Dec()
	}
	r.uid = ""
	r.receiverLoaded = false
	r.donorLoaded = false
	r.state = State{}
}

func (r *Resolver) State() State {
	return r.state
}

// guard drops snapshots that belong to a previous identity.
func (r *Resolver) guard(uid string, fn func([]store.Document)) store.SnapshotFunc {
	return func(docs []store.Document) {
		if r.uid != uid {
			return
		}
		fn(docs)
	}
}

func (r *Resolver) guardErr(uid, listener string, fn func()) store.ErrorFunc {
	return func(err error) {
		if r.uid != uid {
			return
		}
		metrics.ListenerErrors.WithLabelValues(listener).Inc()
		r.logger.WithError(apperrors.NewListenerFailedError(listener, err)).
			Warn("role signal failed", map[string]interface{}{"uid": uid})
		fn()
	}
}

func (r *Resolver) handleReceiverSnapshot(docs []store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(ListenerReceiver).Inc()
	r.receiverLoaded = true
	r.state.HasReceiverRequests = len(docs) > 0
	r.publish()
}

// SetReceiverSignal reports whether the identity authors any Request. A
// failed receiver listener reports false. Ignored while stopped or when the
// resolver runs its own receiver query.
func (r *Resolver) SetReceiverSignal(hasRequests bool) {
	if r.uid == "" || !r.config.ExternalReceiverSignal {
		return
	}
	if r.receiverLoaded && r.state.HasReceiverRequests == hasRequests {
		return
	}
	r.receiverLoaded = true
	r.state.HasReceiverRequests = hasRequests
	r.publish()
}

func (r *Resolver) handleReceiverError() {
	r.receiverLoaded = true
	r.state.HasReceiverRequests = false
	r.publish()
}

func (r *Resolver) handleDonorSnapshot(docs []store.Document) {
	metrics.SnapshotsReceived.WithLabelValues(ListenerDonor).Inc()
	r.donorLoaded = true
	r.state.DonorProfile = nil
	if len(docs) > 0 {
		d := docs[0]
		r.state.DonorProfile = &models.DonorProfile{
			ID:         d.ID,
			UID:        normalize.String(d.Data[models.FieldUID]),
			City:       normalize.Text(d.Data[models.FieldCity], ""),
			BloodGroup: normalize.Text(d.Data[models.FieldBloodGroup], ""),
		}
	}
	r.publish()
}

// handleDonorError keeps the last known profile; a transient failure should not
// flip a donor to profile-incomplete.
func (r *Resolver) handleDonorError() {
	r.donorLoaded = true
	r.publish()
}

func (r *Resolver) publish() {
	prev := r.state.Role
	r.state.Role = Resolve(r.state.HasReceiverRequests, r.state.DonorProfile != nil)
	r.state.Ready = r.receiverLoaded && r.donorLoaded
	if prev != r.state.Role {
		r.logger.Info("role changed", map[string]interface{}{
			"uid":  r.uid,
			"from": string(prev),
			"to":   string(r.state.Role),
		})
	}
	if r.onChange != nil {
		r.onChange(r.state)
	}
}
