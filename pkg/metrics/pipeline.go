package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the provisioning event pipeline: hot-path publishes,
// retry store traffic, and consumer outcomes.
type PipelineMetrics struct {
	publishLatency  *prometheus.HistogramVec
	published       *prometheus.CounterVec
	deferred        *prometheus.CounterVec
	resent          *prometheus.CounterVec
	poisoned        *prometheus.CounterVec
	consumed        *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	consumeFailures *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	publishLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_publish_latency_seconds",
		Help:    "Latency of hot-path event publishes in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"topic"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_published_total",
		Help: "Events acknowledged by the broker.",
	}, []string{"topic"})
	deferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_deferred_total",
		Help: "Events persisted to the retry store after a failed publish.",
	}, []string{"topic"})
	resent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_resent_total",
		Help: "Stored events successfully resent by the sweeper.",
	}, []string{"role"})
	poisoned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_poisoned_total",
		Help: "Stored events moved to the poison table.",
	}, []string{"reason"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_consumed_total",
		Help: "Events materialized by a consumer.",
	}, []string{"consumer"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_duplicate_total",
		Help: "Redeliveries skipped by idempotency checks.",
	}, []string{"consumer"})
	consumeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_consume_failure_total",
		Help: "Consumer handler failures that will be redelivered.",
	}, []string{"consumer"})
	reg.MustRegister(publishLatency, published, deferred, resent, poisoned, consumed, duplicates, consumeFailures)
	return &PipelineMetrics{
		publishLatency:  publishLatency,
		published:       published,
		deferred:        deferred,
		resent:          resent,
		poisoned:        poisoned,
		consumed:        consumed,
		duplicates:      duplicates,
		consumeFailures: consumeFailures,
	}
}

// ObservePublishLatency records how long a hot-path publish took.
func (p *PipelineMetrics) ObservePublishLatency(topic string, duration time.Duration) {
	if p == nil || p.publishLatency == nil {
		return
	}
	p.publishLatency.WithLabelValues(normalizeLabel(topic)).Observe(duration.Seconds())
}

// IncPublished counts a broker-acknowledged publish.
func (p *PipelineMetrics) IncPublished(topic string) {
	if p == nil || p.published == nil {
		return
	}
	p.published.WithLabelValues(normalizeLabel(topic)).Inc()
}

// IncDeferred counts an event handed to the retry store.
func (p *PipelineMetrics) IncDeferred(topic string) {
	if p == nil || p.deferred == nil {
		return
	}
	p.deferred.WithLabelValues(normalizeLabel(topic)).Inc()
}

// IncResent counts a sweeper resend for the given account role.
func (p *PipelineMetrics) IncResent(role string) {
	if p == nil || p.resent == nil {
		return
	}
	p.resent.WithLabelValues(normalizeLabel(role)).Inc()
}

// IncPoisoned counts a poison-table escalation.
func (p *PipelineMetrics) IncPoisoned(reason string) {
	if p == nil || p.poisoned == nil {
		return
	}
	p.poisoned.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncConsumed counts a materialized event.
func (p *PipelineMetrics) IncConsumed(consumer string) {
	if p == nil || p.consumed == nil {
		return
	}
	p.consumed.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncDuplicate counts a skipped redelivery.
func (p *PipelineMetrics) IncDuplicate(consumer string) {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncConsumeFailure counts a nacked delivery.
func (p *PipelineMetrics) IncConsumeFailure(consumer string) {
	if p == nil || p.consumeFailures == nil {
		return
	}
	p.consumeFailures.WithLabelValues(normalizeLabel(consumer)).Inc()
}
