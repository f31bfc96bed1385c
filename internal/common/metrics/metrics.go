// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListenersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_listeners_active",
			Help: "Number of live subscriptions currently attached",
		},
		[]string{"tier"},
	)

	SnapshotsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_snapshots_total",
			Help: "Total number of snapshots delivered to a listener",
		},
		[]string{"listener"},
	)

	ListenerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_listener_errors_total",
			Help: "Total number of subscription errors per listener",
		},
		[]string{"listener"},
	)

	ProjectionItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_projection_items",
			Help: "Number of items in the latest projection",
		},
		[]string{"role"},
	)

	UnseenItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_unseen_items",
			Help: "Unseen count recomputed from the latest projection",
		},
		[]string{"role"},
	)

	SeenWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_seen_writes_total",
			Help: "Seen-state writes issued by the committer",
		},
		[]string{"role", "result"},
	)

	Actions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_actions_total",
			Help: "Accept/decline actions by outcome",
		},
		[]string{"decision", "result"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "feed_action_duration_seconds",
			Help: "Duration of accept/decline writes in seconds",
		},
		[]string{"decision"},
	)

	PushNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_push_total",
			Help: "Push notifications attempted by outcome",
		},
		[]string{"result"},
	)
)
