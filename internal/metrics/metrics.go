package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records model call and pipeline statistics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts     *prometheus.CounterVec
	calls        *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	chunks       *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_call_attempts_total",
				Help: "Total number of HTTP attempts made against the completion endpoint by stage",
			},
			[]string{"stage"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_calls_total",
				Help: "Total number of model calls by stage and outcome, after retries",
			},
			[]string{"stage", "outcome"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_tokens_total",
				Help: "Total tokens reported by the completion endpoint by stage",
			},
			[]string{"stage"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_call_duration_seconds",
				Help:    "Wall time of model calls including retries",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_runs_total",
				Help: "Total number of pipeline runs by analysis outcome",
			},
			[]string{"outcome"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_chunks_total",
				Help: "Total number of chunks sent for extraction by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.attempts,
		m.calls,
		m.tokens,
		m.callDuration,
		m.runs,
		m.chunks,
	)

	return m
}

func (m *Metrics) ObserveAttempt(stage string) {
	if m != nil {
		m.attempts.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveCall(stage string, ok bool, duration time.Duration, tokens int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.calls.WithLabelValues(stage, outcome).Inc()
	m.callDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if tokens > 0 {
		m.tokens.WithLabelValues(stage).Add(float64(tokens))
	}
}

func (m *Metrics) ObserveRun(outcome string) {
	if m != nil {
		m.runs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveChunk(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.chunks.WithLabelValues("extracted").Inc()
	} else {
		m.chunks.WithLabelValues("failed").Inc()
	}
}
