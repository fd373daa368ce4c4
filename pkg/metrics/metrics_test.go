package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "pending-events-sweep"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "sweep_job_success", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sweep_job_failure", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "sweep_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestPipelineMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)
	topic := "player-created-topic"

	metrics.ObservePublishLatency(topic, 120*time.Millisecond)
	metrics.IncPublished(topic)
	metrics.IncDeferred(topic)
	metrics.IncResent("PLAYER")
	metrics.IncPoisoned("max_attempts")
	metrics.IncConsumed("player-service")
	metrics.IncDuplicate("player-service")
	metrics.IncConsumeFailure("player-service")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name  string
		label string
		value string
	}{
		{"event_published_total", "topic", topic},
		{"event_deferred_total", "topic", topic},
		{"event_resent_total", "role", "PLAYER"},
		{"event_poisoned_total", "reason", "max_attempts"},
		{"event_consumed_total", "consumer", "player-service"},
		{"event_duplicate_total", "consumer", "player-service"},
		{"event_consume_failure_total", "consumer", "player-service"},
	}
	for _, check := range checks {
		if got, err := fetchCounterValue(mfs, check.name, check.label, check.value); err != nil {
			t.Fatalf("fetch %s: %v", check.name, err)
		} else if got != 1 {
			t.Fatalf("expected %s=1, got %f", check.name, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "event_publish_latency_seconds", "topic", topic); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	cron := NewCronJobMetrics(nil)
	cron.IncSuccess("job")
	cron.ObserveDuration("job", time.Second)

	pipeline := NewPipelineMetrics(nil)
	pipeline.IncPublished("topic")
	pipeline.ObservePublishLatency("topic", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
