// Package jobmetrics instruments asynq jobs and the in-process side channel.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dropped  *prometheus.CounterVec
	findings *prometheus.GaugeVec
}

var (
	processOnce    sync.Once
	processMetrics *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg means the default
// registerer, and repeated nil calls share one set of collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	processOnce.Do(func() { processMetrics = register(prometheus.DefaultRegisterer) })
	return processMetrics
}

func register(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"job"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_sidechannel_dropped_total",
			Help: "Side-channel tasks dropped because the queue was full.",
		}, []string{"job"}),
		findings: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_integrity_findings",
			Help: "Findings from the latest ledger integrity scan by kind.",
		}, []string{"kind"}),
	}
}

// Tracker times one job run.
type Tracker struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts timing job. Safe on a nil receiver.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{m: m, job: job, start: time.Now()}
}

// End records the outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil || t.job == "" {
		return err
	}
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	t.m.runs.WithLabelValues(t.job, status).Inc()
	t.m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Dropped counts a task rejected because its queue was full.
func (m *Metrics) Dropped(job string) {
	if m != nil {
		m.dropped.WithLabelValues(job).Inc()
	}
}

// Findings publishes the count of one kind of integrity finding.
func (m *Metrics) Findings(kind string, n int) {
	if m != nil {
		m.findings.WithLabelValues(kind).Set(float64(n))
	}
}
