package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsIntoRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	o := New(Options{ServiceName: "feed-sync-test", Registerer: reg})
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "actions.accept")
	o.RecordAction(ctx, "accepted", "success", 12*time.Millisecond)
	o.RecordSeenRun(ctx, "donor", 2)
	span.End()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "feed.otel.actions_total")
	assert.Contains(t, names, "feed.otel.seen.runs_total")
	assert.Contains(t, names, "feed.otel.action.duration_milliseconds")
}

// ==========================================
// Shared registry
// ==========================================

func TestNew_NamesDoNotCollideWithCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	for _, name := range []string{
		"feed_actions_total",
		"feed_seen_writes_total",
	} {
		reg.MustRegister(promclient.NewCounter(promclient.CounterOpts{Name: name, Help: name}))
	}
	reg.MustRegister(promclient.NewHistogram(promclient.HistogramOpts{
		Name: "feed_action_duration_seconds",
		Help: "feed_action_duration_seconds",
	}))

	o := New(Options{ServiceName: "feed-sync-test", Registerer: reg})
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordAction(ctx, "declined", "success", 3*time.Millisecond)
	o.RecordSeenRun(ctx, "receiver", 1)

	families, err := reg.Gather()
	require.NoError(t, err)

	// The classic text format writes dots as underscores.
	seen := map[string]bool{}
	for _, f := range families {
		escaped := strings.ReplaceAll(f.GetName(), ".", "_")
		assert.False(t, seen[escaped], "duplicate metric family %s", escaped)
		seen[escaped] = true
	}
	assert.True(t, seen["feed_otel_actions_total"])
	assert.True(t, seen["feed_actions_total"])
}

func TestNilObservability_IsSafe(t *testing.T) {
	var o *Observability
	ctx, span := o.StartSpan(context.Background(), "noop")
	o.RecordAction(ctx, "declined", "failure", time.Millisecond)
	o.RecordSeenRun(ctx, "receiver", 1)
	span.End()
	o.Shutdown()

	n := NewNoop()
	_, span = n.StartSpan(context.Background(), "noop")
	span.End()
}
