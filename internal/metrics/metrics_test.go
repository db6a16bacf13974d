package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStageOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StageRan("facts", 200*time.Millisecond)
	m.StageRan("facts", 100*time.Millisecond)
	m.StageSkipped("reason")
	m.StageFailed("split")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("facts", "ran")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("reason", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("split", "failed")))
}

func TestLLMCallOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LLMCall("reason", "anthropic", 1000, 200, nil)
	m.LLMCall("reason", "anthropic", 500, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("reason", "anthropic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("reason", "anthropic", "error")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.LLMChars.WithLabelValues("in")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.LLMChars.WithLabelValues("out")))
}

func TestRunGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive))
	m.RunFinished("ok")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
}

func TestNilReceiverIsInert(t *testing.T) {
	var m *Metrics
	m.StageRan("facts", time.Second)
	m.StageSkipped("facts")
	m.StageFailed("facts")
	m.LLMCall("reason", "anthropic", 1, 1, nil)
	m.Drop("reason", "finding")
	m.RunStarted()
	m.RunFinished("ok")
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
