package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

func TestWorkerHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	h := m.WorkerHooks()

	h.OnProcessed(120 * time.Millisecond)
	h.OnProcessed(80 * time.Millisecond)
	h.OnFailed(domain.KindDelivery)
	h.OnFailed(domain.KindNoMatch)
	h.OnFailed(domain.KindDelivery)
	h.OnCycle(domain.CycleResult{FinishedAt: time.Unix(1700000000, 0)}, nil)
	h.OnCycle(domain.CycleResult{}, errors.New("receive"))
	h.OnSideCallFailure("visibility")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuggestionsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SuggestionsFailed.WithLabelValues("delivery")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuggestionsFailed.WithLabelValues("no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("receive_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideCallFailures.WithLabelValues("visibility")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FulfillmentLatency))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
