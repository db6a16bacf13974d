// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	StageRuns       *prometheus.CounterVec   // stage executions by outcome
	StageDuration   *prometheus.HistogramVec // wall time per executed stage
	LLMCalls        *prometheus.CounterVec   // chat calls by stage, provider, outcome
	LLMChars        *prometheus.CounterVec   // prompt/response volume by direction
	ValidationDrops *prometheus.CounterVec   // grounding drops by stage and kind
	RunsTotal       *prometheus.CounterVec   // completed runs by outcome
	RunsActive      prometheus.Gauge         // runs currently executing
}

// New creates and registers the pipeline collectors. The registerer
// parameter allows flexible registration (global registry, test registry).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auspex",
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by outcome (ran, skipped, failed)",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auspex",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per executed pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auspex",
			Name:      "llm_calls_total",
			Help:      "Chat model calls by stage, provider and outcome",
		}, []string{"stage", "provider", "outcome"}),
		LLMChars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auspex",
			Name:      "llm_chars_total",
			Help:      "Characters exchanged with the chat model",
		}, []string{"direction"}),
		ValidationDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auspex",
			Name:      "validation_drops_total",
			Help:      "Claims dropped for failing evidence grounding",
		}, []string{"stage", "kind"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auspex",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome",
		}, []string{"outcome"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auspex",
			Name:      "runs_active",
			Help:      "Pipeline runs currently executing",
		}),
	}
	reg.MustRegister(m.StageRuns, m.StageDuration, m.LLMCalls, m.LLMChars,
		m.ValidationDrops, m.RunsTotal, m.RunsActive)
	return m
}

var (
	defaultInstance *Metrics
	defaultOnce     sync.Once
)

// Default returns the process-wide instance registered on the default
// Prometheus registry. Any package may record through it.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInstance = New(prometheus.DefaultRegisterer)
	})
	return defaultInstance
}

// StageRan records an executed stage and how long it took.
func (m *Metrics) StageRan(stage string, dur time.Duration) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, "ran").Inc()
	m.StageDuration.WithLabelValues(stage).Observe(dur.Seconds())
}

// StageSkipped records a stage the freshness gate left alone.
func (m *Metrics) StageSkipped(stage string) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, "skipped").Inc()
}

// StageFailed records a stage that returned an error.
func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, "failed").Inc()
}

// LLMCall records one chat-model round trip.
func (m *Metrics) LLMCall(stage, provider string, charsIn, charsOut int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(stage, provider, outcome).Inc()
	m.LLMChars.WithLabelValues("in").Add(float64(charsIn))
	m.LLMChars.WithLabelValues("out").Add(float64(charsOut))
}

// Drop records one claim removed by evidence grounding.
func (m *Metrics) Drop(stage, kind string) {
	if m == nil {
		return
	}
	m.ValidationDrops.WithLabelValues(stage, kind).Inc()
}

// RunStarted marks a pipeline run in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsActive.Inc()
}

// RunFinished marks a pipeline run complete.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.RunsActive.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
}
