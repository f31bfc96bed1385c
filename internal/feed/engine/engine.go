// internal/feed/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"sync"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/common/observability"
	"feed-sync/internal/feed/actions"
	"feed-sync/internal/feed/donormatch"
	"feed-sync/internal/feed/fanout"
	"feed-sync/internal/feed/loop"
	"feed-sync/internal/feed/normalize"
	"feed-sync/internal/feed/profile"
	"feed-sync/internal/feed/projector"
	"feed-sync/internal/feed/role"
	"feed-sync/internal/feed/seen"
	"feed-sync/internal/models"
	"feed-sync/internal/push"
	"feed-sync/internal/store"

	"github.com/google/uuid"
)

// Deps are the optional collaborators of an Engine.
type Deps struct {
	Notifier      push.Notifier
	Tokens        push.TokenLookup
	Observability *observability.Observability
	Alerts        apperrors.AlertSink
}

// Engine keeps one identity's notification feed in sync with the store.
//
// Every component lives on a single loop goroutine; the public methods post
// onto it and are safe for concurrent use. Remote writes run on the caller's
// goroutine. Observers run on the loop and must not call back into the Engine
// synchronously.
type Engine struct {
	config   *Config
	logger   logger.Logger
	loop     *loop.Loop
	ctx      context.Context
	cancel   context.CancelFunc
	reporter *apperrors.ErrorReporter

	committer *seen.Committer
	actions   *actions.Handler

	// Loop-confined.
	resolver      *role.Resolver
	profile       *profile.Watcher
	donors        *donormatch.Listener
	fanout        *fanout.Manager
	uid           string
	session       string
	gen           int
	highlight     models.HighlightKey
	receiverItems []models.ReceiverItem
	seenOverlay   bool
	observers     []func(State)

	closeOnce sync.Once
}

func New(config *Config, st store.DocStore, deps Deps, log logger.Logger) *Engine {
	if config == nil {
		config = LoadConfig()
	}
	log = logger.Component(log, "engine")

	e := &Engine{
		config:        config,
		logger:        log,
		reporter:      apperrors.NewErrorReporter(log, deps.Alerts),
		receiverItems: []models.ReceiverItem{},
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.loop = loop.New(func(recovered interface{}) {
		e.logger.Error("feed callback panicked", map[string]interface{}{"panic": fmt.Sprint(recovered)})
	})

	ls := &loopStore{DocStore: st, loop: e.loop}

	e.resolver = role.NewResolver(&role.Config{
		RequestsCollection:     config.RequestsCollection,
		DonorsCollection:       config.DonorsCollection,
		ExternalReceiverSignal: true,
	}, ls, log, func(role.State) { e.onRoleChange() })

	e.profile = profile.NewWatcher(config.UsersCollection, ls, log, func(models.UserProfile) { e.onRoleChange() })

	e.donors = donormatch.NewListener(&donormatch.Config{
		Collection: config.RequestsCollection,
		Location:   config.Location,
		Now:        config.Now,
	}, ls, log, e.onDonorsChange)

	e.fanout = fanout.NewManager(&fanout.Config{Collection: config.RequestsCollection}, ls, log, e.onFragmentsChange)

	e.committer = seen.NewCommitter(&seen.Config{
		Collection: config.RequestsCollection,
		Debounce:   config.SeenDebounce,
		Timeout:    config.WriteTimeout,
		Now:        config.Now,
	}, st, log, deps.Observability)

	actionsConfig := actions.LoadConfig()
	actionsConfig.Collection = config.RequestsCollection
	actionsConfig.Timeout = config.WriteTimeout
	e.actions = actions.NewHandler(actionsConfig, st, deps.Notifier, deps.Tokens, deps.Observability, log)

	return e
}

// Observe registers fn to receive every new State.
func (e *Engine) Observe(fn func(State)) {
	e.loop.Post(func() { e.observers = append(e.observers, fn) })
}

// SetIdentity detaches everything owned by the previous identity and attaches
// the listeners for uid. "" signs out.
func (e *Engine) SetIdentity(ctx context.Context, uid string) error {
	return e.loop.Call(ctx, func() { e.attach(uid) })
}

func (e *Engine) SignOut(ctx context.Context) error {
	return e.SetIdentity(ctx, "")
}

// SetHighlight spotlights the item the user navigated to.
func (e *Engine) SetHighlight(ctx context.Context, key models.HighlightKey) error {
	return e.loop.Call(ctx, func() {
		e.highlight = key
		e.donors.SetHighlight(key.RequestID)
		e.rebuildReceiver()
		e.emit()
	})
}

// Focus marks the feed seen when the screen gains focus.
func (e *Engine) Focus(ctx context.Context) error {
	_, err := e.MarkAllSeen(ctx)
	if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeSeenWriteFailed) {
		return err
	}
	return nil
}

// Refresh clears the highlight and marks the feed seen.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.SetHighlight(ctx, models.HighlightKey{}); err != nil {
		return err
	}
	return e.Focus(ctx)
}

// MarkAllSeen runs the seen committer for the current role. Runs inside the
// debounce window, or without a role, do nothing.
func (e *Engine) MarkAllSeen(ctx context.Context) (seen.Result, error) {
	var (
		batch seen.Batch
		gen   int
		ok    bool
	)
	if err := e.loop.Call(ctx, func() {
		if e.uid == "" {
			return
		}
		gen = e.gen
		switch e.resolver.State().Role {
		case models.RoleDonor:
			batch, ok = seen.PlanDonor(e.uid, e.donors.Items()), true
		case models.RoleReceiver:
			batch, ok = seen.PlanReceiver(e.fanout.Fragments()), true
		}
	}); err != nil {
		return seen.Result{}, err
	}
	if !ok {
		return seen.Result{}, nil
	}

	res, err := e.committer.Run(ctx, batch)
	if err != nil {
		e.reporter.Report("markAllSeen", err)
		return res, err
	}
	if res.Ran && res.Complete {
		e.loop.Post(func() {
			if e.gen != gen {
				return
			}
			e.seenOverlay = true
			e.emit()
		})
	}
	return res, nil
}

func (e *Engine) Accept(ctx context.Context, requestID string) (*actions.Output, error) {
	return e.respond(ctx, actions.DecisionAccept, requestID)
}

func (e *Engine) Decline(ctx context.Context, requestID string) (*actions.Output, error) {
	return e.respond(ctx, actions.DecisionDecline, requestID)
}

func (e *Engine) respond(ctx context.Context, decision, requestID string) (*actions.Output, error) {
	var (
		input *actions.Input
		gen   int
	)
	if err := e.loop.Call(ctx, func() {
		gen = e.gen
		input = &actions.Input{
			Decision:  decision,
			RequestID: requestID,
			DonorUID:  e.uid,
			Profile:   e.profile.Profile(),
		}
		if item, ok := e.donors.Find(requestID); ok {
			input.Item = &item
		}
		if dp := e.resolver.State().DonorProfile; dp != nil {
			input.City = dp.City
			input.BloodGroup = dp.BloodGroup
		}
	}); err != nil {
		return nil, err
	}

	out, err := e.actions.Execute(ctx, input, func() {
		e.loop.Post(func() {
			if e.gen == gen {
				e.donors.RemoveLocal(requestID)
			}
		})
	})
	if err != nil {
		e.reporter.Report(actions.Verb(decision), err)
		return nil, err
	}
	return out, nil
}

// DialNumber returns the tel: URI for phone, alerting when there is none.
func (e *Engine) DialNumber(phone string) (string, error) {
	uri, err := normalize.DialNumber(phone)
	if err != nil {
		e.reporter.Report("dial", err)
		return "", err
	}
	return uri, nil
}

// State returns the current snapshot.
func (e *Engine) State(ctx context.Context) (State, error) {
	var s State
	err := e.loop.Call(ctx, func() { s = e.snapshot() })
	return s, err
}

// Drain waits until every queued callback has run.
func (e *Engine) Drain(ctx context.Context) error {
	return e.loop.Drain(ctx)
}

// Close detaches every listener and stops the loop.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		_ = e.loop.Call(context.Background(), e.teardown)
		e.cancel()
		e.loop.Close()
	})
}

// ==========================
// Loop-confined internals
// ==========================

func (e *Engine) attach(uid string) {
	e.teardown()
	e.gen++
	e.uid = uid
	if uid == "" {
		e.logger.Info("signed out", nil)
		e.emit()
		return
	}
	e.session = uuid.New().String()
	e.logger.Info("attaching feed", map[string]interface{}{"uid": uid, "session": e.session})
	e.donors.SetHighlight(e.highlight.RequestID)

	if err := e.resolver.Start(e.ctx, uid); err != nil {
		e.reporter.Report("attachRole", apperrors.NewStoreConnectionFailedError(err))
	}
	if err := e.profile.Start(e.ctx, uid); err != nil {
		e.reporter.Report("attachProfile", apperrors.NewStoreConnectionFailedError(err))
	}
	if err := e.fanout.Start(e.ctx, uid); err != nil {
		e.reporter.Report("attachReceiver", apperrors.NewStoreConnectionFailedError(err))
		e.resolver.SetReceiverSignal(false)
	}
	e.reconfigureDonors()
	e.emit()
}

func (e *Engine) teardown() {
	e.resolver.Stop()
	e.profile.Stop()
	e.donors.Stop()
	e.fanout.Stop()
	e.uid = ""
	e.session = ""
	e.receiverItems = []models.ReceiverItem{}
	e.seenOverlay = false
}

func (e *Engine) onRoleChange() {
	if e.uid == "" {
		return
	}
	e.reconfigureDonors()
	e.emit()
}

func (e *Engine) onDonorsChange() {
	e.seenOverlay = false
	e.emit()
}

// onFragmentsChange also feeds the role resolver: Tier 1 is the same query as
// the receiver signal.
func (e *Engine) onFragmentsChange() {
	e.rebuildReceiver()
	if e.fanout.Ready() {
		e.resolver.SetReceiverSignal(e.fanout.HasRequests())
	}
	e.emit()
}

// reconfigureDonors matches on the DonorProfile, falling back to the user
// profile field by field. Only the donor role runs the match query.
func (e *Engine) reconfigureDonors() {
	rs := e.resolver.State()
	p := e.profile.Profile()
	params := donormatch.Params{
		UID:        e.uid,
		City:       p.City,
		BloodGroup: p.BloodGroup,
		Active:     rs.Role == models.RoleDonor,
	}
	if dp := rs.DonorProfile; dp != nil {
		if dp.City != "" {
			params.City = dp.City
		}
		if dp.BloodGroup != "" {
			params.BloodGroup = dp.BloodGroup
		}
	}
	if err := e.donors.Configure(e.ctx, params); err != nil {
		e.reporter.Report("configureDonorMatches", apperrors.NewStoreConnectionFailedError(err))
	}
}

func (e *Engine) rebuildReceiver() {
	e.receiverItems = projector.Project(e.fanout.Fragments(), e.highlight, e.config.Location)
	e.seenOverlay = false
	metrics.ProjectionItems.WithLabelValues(string(models.RoleReceiver)).Set(float64(len(e.receiverItems)))
	metrics.UnseenItems.WithLabelValues(string(models.RoleReceiver)).Set(float64(projector.UnseenCount(e.receiverItems)))
}

func (e *Engine) view(r models.Role) View {
	switch {
	case e.uid == "":
		return ViewSignedOut
	case !e.profile.Loaded() || !e.resolver.State().Ready:
		return ViewLoading
	case r == models.RoleDonor && !e.donors.Ready():
		return ViewPreparingMatches
	case r == models.RoleReceiver && !e.fanout.Ready():
		return ViewPreparingResponses
	}
	p := e.profile.Profile()
	if !e.profile.Exists() || p.City == "" || p.BloodGroup == "" {
		return ViewProfileIncomplete
	}
	switch r {
	case models.RoleDonor:
		return ViewDonor
	case models.RoleReceiver:
		return ViewReceiver
	default:
		return ViewEmpty
	}
}

func (e *Engine) snapshot() State {
	rs := e.resolver.State()
	s := State{
		UID:           e.uid,
		Role:          rs.Role,
		DonorItems:    e.donors.Items(),
		ReceiverItems: append([]models.ReceiverItem(nil), e.receiverItems...),
		Profile:       e.profile.Profile(),
		DonorProfile:  rs.DonorProfile,
		Highlight:     e.highlight,
		Tracked:       e.fanout.TrackedIDs(),
	}
	if s.ReceiverItems == nil {
		s.ReceiverItems = []models.ReceiverItem{}
	}
	s.View = e.view(rs.Role)

	switch rs.Role {
	case models.RoleDonor:
		s.UnseenCount = e.donors.UnseenCount()
	case models.RoleReceiver:
		s.UnseenCount = projector.UnseenCount(e.receiverItems)
	}
	if e.seenOverlay {
		s.UnseenCount = 0
	}
	return s
}

func (e *Engine) emit() {
	if len(e.observers) == 0 {
		return
	}
	s := e.snapshot()
	for _, fn := range e.observers {
		fn(s)
	}
}
