package monitoring

import (
	"testing"
	"time"
)

func TestMetricSummary(t *testing.T) {
	mc := NewMetricsCollector()
	for _, v := range []float64{3, 1, 2} {
		mc.RecordHistogram("latency", v, nil)
	}
	summary, err := mc.GetMetricSummary("latency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary["count"].(int) != 3 || summary["min"].(float64) != 1 || summary["max"].(float64) != 3 {
		t.Fatalf("unexpected summary: %v", summary)
	}
	if summary["average"].(float64) != 2 || summary["latest"].(float64) != 2 {
		t.Fatalf("unexpected summary: %v", summary)
	}
	if _, err := mc.GetMetric("absent"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestMetricHistoryIsBounded(t *testing.T) {
	mc := NewMetricsCollector()
	for i := 0; i < maxSamples+1; i++ {
		mc.IncrCounter("hits", 1, nil)
	}
	metrics, _ := mc.GetMetric("hits")
	if len(metrics) > maxSamples {
		t.Fatalf("expected at most %d samples, got %d", maxSamples, len(metrics))
	}
}

func TestPredictionMetrics(t *testing.T) {
	pm := NewPredictionMetrics(nil)
	pm.RecordPrediction(OutcomeSuccess, 2*time.Millisecond)
	pm.RecordPrediction(OutcomeSuccess, 4*time.Millisecond)
	pm.RecordPrediction(OutcomeInvalid, time.Millisecond)

	if pm.Count(OutcomeSuccess) != 2 || pm.Count(OutcomeInvalid) != 1 || pm.Count(OutcomeFailed) != 0 {
		t.Fatalf("unexpected counts")
	}
	stats := pm.GetPredictionStats()
	if stats["predictions_total"].(int64) != 3 {
		t.Fatalf("unexpected total: %v", stats["predictions_total"])
	}
	latency := stats["latency_ms"].(map[string]interface{})
	if latency["max"].(float64) != 4 {
		t.Fatalf("unexpected latency summary: %v", latency)
	}
}
