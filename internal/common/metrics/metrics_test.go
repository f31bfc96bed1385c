package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	SeenWrites.WithLabelValues("donor", "success").Inc()
	Actions.WithLabelValues("accepted", "failure").Inc()
	ListenersActive.WithLabelValues("tier2").Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(SeenWrites.WithLabelValues("donor", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(Actions.WithLabelValues("accepted", "failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(ListenersActive.WithLabelValues("tier2")))
}
