package monitoring

import (
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

type MetricType int

const (
	Counter MetricType = iota
	Gauge
	Histogram
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	}
	return "unknown"
}

type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"-"`
	Kind      string            `json:"type"`
	Value     float64           `json:"value"`
	Count     int64             `json:"count,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type MetricsCollector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

var (
	globalMetrics = NewMetricsCollector()
	startTime     = time.Now()
)

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metric),
	}
}

func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.AddCounter(name, 1, labels)
}

func (mc *MetricsCollector) AddCounter(name string, delta float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	metric := mc.getOrCreate(name, Counter, labels)
	metric.Value += delta
	metric.Timestamp = time.Now()
}

func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	metric := mc.getOrCreate(name, Gauge, labels)
	metric.Value = value
	metric.Timestamp = time.Now()
}

// RecordHistogram keeps a running mean and observation count.
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	metric := mc.getOrCreate(name, Histogram, labels)
	metric.Count++
	metric.Value += (value - metric.Value) / float64(metric.Count)
	metric.Timestamp = time.Now()
}

func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) *Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	metric, ok := mc.metrics[metricKey(name, labels)]
	if !ok {
		return nil
	}
	copied := *metric
	return &copied
}

func (mc *MetricsCollector) GetAllMetrics() map[string]*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]*Metric, len(mc.metrics))
	for k, v := range mc.metrics {
		copied := *v
		result[k] = &copied
	}
	return result
}

func (mc *MetricsCollector) getOrCreate(name string, kind MetricType, labels map[string]string) *Metric {
	key := metricKey(name, labels)
	if metric, ok := mc.metrics[key]; ok {
		return metric
	}
	metric := &Metric{Name: name, Type: kind, Kind: kind.String(), Labels: labels}
	mc.metrics[key] = metric
	return metric
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("_" + k + ":" + labels[k])
	}
	return b.String()
}

func Default() *MetricsCollector {
	return globalMetrics
}

func IncrementCounter(name string, labels map[string]string) {
	globalMetrics.IncrementCounter(name, labels)
}

func SetGauge(name string, value float64, labels map[string]string) {
	globalMetrics.SetGauge(name, value, labels)
}

func RecordHistogram(name string, value float64, labels map[string]string) {
	globalMetrics.RecordHistogram(name, value, labels)
}

func GetMetric(name string, labels map[string]string) *Metric {
	return globalMetrics.GetMetric(name, labels)
}

func GetAllMetrics() map[string]*Metric {
	return globalMetrics.GetAllMetrics()
}

func GetSystemMetrics() map[string]float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]float64{
		"memory_usage": float64(m.Alloc),
		"goroutines":   float64(runtime.NumGoroutine()),
		"heap_size":    float64(m.HeapSys),
		"gc_count":     float64(m.NumGC),
		"uptime":       time.Since(startTime).Seconds(),
	}
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	IncrementCounter("http_requests_total", map[string]string{
		"method": method,
		"route":  route,
		"status": class,
	})
	RecordHistogram("http_response_time_ms", float64(duration.Milliseconds()), map[string]string{
		"route": route,
	})
}

func RecordBoletoCreated(category string) {
	IncrementCounter("boletos_created_total", map[string]string{"category": category})
}

func RecordBoletoCancelled() {
	IncrementCounter("boletos_cancelled_total", nil)
}

// RecordPayment counts confirmations by outcome. Collected amounts are only
// added for first-time payments so replays never double count.
func RecordPayment(channel, source, outcome string, amount float64) {
	IncrementCounter("boleto_payments_total", map[string]string{
		"channel": channel,
		"source":  source,
		"outcome": outcome,
	})
	if outcome == "paid" {
		globalMetrics.AddCounter("boleto_collected_amount", amount, map[string]string{"channel": channel})
	}
}

func RecordPixWebhook(status, outcome string) {
	IncrementCounter("pix_webhooks_total", map[string]string{
		"status":  status,
		"outcome": outcome,
	})
}

func RecordSimulatorDelivery(success bool) {
	result := "delivered"
	if !success {
		result = "failed"
	}
	IncrementCounter("simulator_deliveries_total", map[string]string{"result": result})
}
