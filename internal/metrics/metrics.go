// Package metrics exposes the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricPrefix = "tallyboard_"

// Submission outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeInvalid   = "invalid"
	OutcomeReference = "invalid_reference"
	OutcomeStation   = "invalid_station"
	OutcomeError     = "error"
)

type Metrics struct {
	Submissions     *prometheus.CounterVec
	SubmitLatency   prometheus.Histogram
	RecordsInserted prometheus.Counter
	Violations      *prometheus.CounterVec
	QueryLatency    *prometheus.HistogramVec
	FeedSubscribers *prometheus.GaugeVec
	FeedSends       *prometheus.CounterVec
	RateLimited     prometheus.Counter
	RateLimitErrors prometheus.Counter
	NotifyFailures  prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration on the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "submissions_total",
			Help: "Ballot submissions by outcome",
		}, []string{"outcome"}),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "submission_latency_seconds",
			Help:    "Time spent validating and persisting one submission",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsInserted: f.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ballot_records_inserted_total",
			Help: "Ballot records committed",
		}),
		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "validation_violations_total",
			Help: "Rejected rules by name",
		}, []string{"rule"}),
		QueryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "aggregate_query_latency_seconds",
			Help:    "Aggregation query latency by level",
			Buckets: prometheus.DefBuckets,
		}, []string{"level"}),
		FeedSubscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "feed_subscribers",
			Help: "Open live feed subscribers by transport",
		}, []string{"transport"}),
		FeedSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "feed_messages_total",
			Help: "Live feed messages sent by type",
		}, []string{"type"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		}),
		RateLimitErrors: f.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ratelimit_errors_total",
			Help: "Rate limiter failures that let the request through",
		}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "feed_notify_failures_total",
			Help: "Post-commit notifications that could not be sent",
		}),
	}
}

func (m *Metrics) ObserveSubmission(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.SubmitLatency.Observe(took.Seconds())
}

func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsInserted.Add(float64(n))
}

func (m *Metrics) IncViolation(rule string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(rule).Inc()
}

func (m *Metrics) ObserveQuery(level string, took time.Duration) {
	if m == nil {
		return
	}
	m.QueryLatency.WithLabelValues(level).Observe(took.Seconds())
}

func (m *Metrics) SubscriberJoined(transport string) {
	if m == nil {
		return
	}
	m.FeedSubscribers.WithLabelValues(transport).Inc()
}

func (m *Metrics) SubscriberLeft(transport string) {
	if m == nil {
		return
	}
	m.FeedSubscribers.WithLabelValues(transport).Dec()
}

func (m *Metrics) IncFeedSend(kind string) {
	if m == nil {
		return
	}
	m.FeedSends.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) IncRateLimitError() {
	if m == nil {
		return
	}
	m.RateLimitErrors.Inc()
}

func (m *Metrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
