package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "otp-purge"
	metrics.ObserveRun(job, 250*time.Millisecond, nil)
	metrics.ObserveRun(job, 100*time.Millisecond, errors.New("db down"))
	metrics.ObserveRun(job, 50*time.Millisecond, nil)

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues(job, "success")); got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues(job, "failure")); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.lastSuccess.WithLabelValues(job)); got <= 0 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "sokohub_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.39 {
		t.Fatalf("expected duration sum 0.4, got %f", got)
	}
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var metrics *CronJobMetrics
	metrics.ObserveRun("otp-purge", time.Second, nil)
	if NewCronJobMetrics(nil) != nil {
		t.Fatalf("nil registerer should disable metrics")
	}
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
