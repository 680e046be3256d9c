package monitoring

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// 每个指标保留的最大样本数
const maxSamples = 1000

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string][]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		startTime: time.Now(),
	}
}

// RecordMetric 记录指标
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	mc.metrics[metric.Name] = append(mc.metrics[metric.Name], metric)

	// 限制历史大小
	if len(mc.metrics[metric.Name]) > maxSamples {
		mc.metrics[metric.Name] = mc.metrics[metric.Name][100:]
	}
}

// GetMetric 获取指标
func (mc *MetricsCollector) GetMetric(name string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}

	result := make([]*Metric, len(metrics))
	for i, m := range metrics {
		metricCopy := *m
		result[i] = &metricCopy
	}
	return result, nil
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string) (map[string]interface{}, error) {
	metrics, err := mc.GetMetric(name)
	if err != nil {
		return nil, err
	}

	if len(metrics) == 0 {
		return map[string]interface{}{"count": 0}, nil
	}

	min, max, sum := metrics[0].Value, metrics[0].Value, 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < min {
			min = m.Value
		}
		if m.Value > max {
			max = m.Value
		}
	}

	return map[string]interface{}{
		"name":      name,
		"count":     len(metrics),
		"latest":    metrics[len(metrics)-1].Value,
		"min":       min,
		"max":       max,
		"average":   sum / float64(len(metrics)),
		"timestamp": metrics[len(metrics)-1].Timestamp,
	}, nil
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeCounter,
		Value:  value,
		Labels: labels,
	})
}

// RecordHistogram 记录直方图样本
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeHistogram,
		Value:  value,
		Labels: labels,
	})
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": m.HeapAlloc,
		"gc_count":   m.NumGC,
	}
}

// PredictionOutcome 预测结果分类
type PredictionOutcome string

const (
	OutcomeSuccess  PredictionOutcome = "success"
	OutcomeInvalid  PredictionOutcome = "invalid"
	OutcomeFailed   PredictionOutcome = "failed"
	OutcomeTimedOut PredictionOutcome = "timeout"
)

// PredictionMetrics 预测业务指标
type PredictionMetrics struct {
	collector   *MetricsCollector
	metricsLock sync.RWMutex
	outcomes    map[PredictionOutcome]int64
}

// NewPredictionMetrics 创建预测指标
func NewPredictionMetrics(collector *MetricsCollector) *PredictionMetrics {
	if collector == nil {
		collector = NewMetricsCollector()
	}
	return &PredictionMetrics{
		collector: collector,
		outcomes:  make(map[PredictionOutcome]int64),
	}
}

// RecordPrediction 记录一次预测
func (pm *PredictionMetrics) RecordPrediction(outcome PredictionOutcome, latency time.Duration) {
	pm.metricsLock.Lock()
	pm.outcomes[outcome]++
	pm.metricsLock.Unlock()

	labels := map[string]string{"outcome": string(outcome)}
	pm.collector.IncrCounter("predictions_total", 1, labels)
	pm.collector.RecordHistogram("prediction_latency_ms", float64(latency.Microseconds())/1000, labels)
}

// Count 返回某一结果的次数
func (pm *PredictionMetrics) Count(outcome PredictionOutcome) int64 {
	pm.metricsLock.RLock()
	defer pm.metricsLock.RUnlock()
	return pm.outcomes[outcome]
}

// GetPredictionStats 获取预测统计
func (pm *PredictionMetrics) GetPredictionStats() map[string]interface{} {
	pm.metricsLock.RLock()
	outcomes := make(map[string]int64, len(pm.outcomes))
	total := int64(0)
	for outcome, count := range pm.outcomes {
		outcomes[string(outcome)] = count
		total += count
	}
	pm.metricsLock.RUnlock()

	stats := map[string]interface{}{
		"predictions_total": total,
		"outcomes":          outcomes,
		"system":            pm.collector.GetSystemStats(),
	}
	if latency, err := pm.collector.GetMetricSummary("prediction_latency_ms"); err == nil {
		stats["latency_ms"] = latency
	}
	return stats
}
