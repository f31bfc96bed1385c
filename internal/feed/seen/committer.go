// internal/feed/seen/committer.go
package seen

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/common/observability"
	"feed-sync/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

// Committer writes seen state at most once per debounce window across all
// callers. Failures are logged and returned but never retried.
type Committer struct {
	config *Config
	store  store.DocStore
	logger logger.Logger
	obs    *observability.Observability

	// lastRun is the UnixNano of the last accepted run; 0 means never.
	lastRun atomic.Int64
}

func NewCommitter(config *Config, st store.DocStore, log logger.Logger, obs *observability.Observability) *Committer {
	if config == nil {
		config = LoadConfig()
	}
	return &Committer{
		config: config,
		store:  st,
		logger: logger.Component(log, "seen-committer"),
		obs:    obs,
	}
}

// TryAcquire claims the current debounce window. Exactly one of any number of
// concurrent callers inside a window wins.
func (c *Committer) TryAcquire() bool {
	now := c.config.Now().UnixNano()
	for {
		last := c.lastRun.Load()
		if last != 0 && now-last < int64(c.config.Debounce) {
			return false
		}
		if c.lastRun.CompareAndSwap(last, now) {
			return true
		}
	}
}

// Run claims the window and commits b. A run inside the window does nothing.
// An empty batch still claims the window.
func (c *Committer) Run(ctx context.Context, b Batch) (Result, error) {
	if !c.TryAcquire() {
		c.logger.Debug("seen run skipped inside debounce window", map[string]interface{}{"role": string(b.Role)})
		return Result{}, nil
	}
	return c.Commit(ctx, b)
}

// Commit issues every write concurrently and waits for all of them. One
// failure does not cancel the others.
func (c *Committer) Commit(ctx context.Context, b Batch) (Result, error) {
	role := string(b.Role)
	ctx, span := c.obs.StartSpan(ctx, "seen.commit",
		attribute.String("role", role),
		attribute.Int("writes", len(b.Writes)))
	defer span.End()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, w := range b.Writes {
		wg.Add(1)
		go func(w Write) {
			defer wg.Done()
			err := c.store.Update(ctx, c.config.Collection, w.RequestID, w.Fields)
			if err != nil {
				metrics.SeenWrites.WithLabelValues(role, "error").Inc()
				c.logger.WithError(err).Warn("seen write failed", map[string]interface{}{
					"role":      role,
					"requestId": w.RequestID,
				})
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return
			}
			metrics.SeenWrites.WithLabelValues(role, "success").Inc()
		}(w)
	}
	wg.Wait()

	failed := len(multierr.Errors(errs))
	res := Result{
		Ran:      true,
		Written:  len(b.Writes) - failed,
		Failed:   failed,
		Complete: failed == 0,
	}
	c.obs.RecordSeenRun(ctx, role, res.Written)

	if errs != nil {
		span.RecordError(errs)
		return res, apperrors.NewSeenWriteFailedError(role, errs)
	}
	c.logger.Debug("seen state committed", map[string]interface{}{
		"role":   role,
		"writes": res.Written,
	})
	return res, nil
}
