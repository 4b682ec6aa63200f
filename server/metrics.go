package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/scorekit/feature"
	"github.com/rushteam/scorekit/pipeline"
)

// Metrics 是服务的 Prometheus 指标，同时实现 pipeline.Observer 与 feature.Monitor。
// 每个实例使用独立的 Registry，测试中可以重复创建。
type Metrics struct {
	registry *prometheus.Registry

	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	runDuration      prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	participantTotal prometheus.Counter
	fallbackTotal    *prometheus.CounterVec
	encodeErrorTotal *prometheus.CounterVec
	degradationTotal *prometheus.CounterVec
}

var (
	_ pipeline.Observer = (*Metrics)(nil)
	_ feature.Monitor   = (*Metrics)(nil)
)

// NewMetrics 创建指标并注册到新的 Registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// requestTotal counts HTTP requests by endpoint and status
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorekit_http_requests_total",
			Help: "Total HTTP requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scorekit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorekit_pipeline_duration_seconds",
			Help:    "Scoring pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scorekit_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"stage", "result"}),
		participantTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scorekit_participants_scored_total",
			Help: "Total participants scored",
		}),
		fallbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorekit_lookup_fallback_total",
			Help: "Geographic lookups that fell back to the global mean, by feature",
		}, []string{"feature"}),
		encodeErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorekit_encode_errors_total",
			Help: "Records rejected by the feature encoder, by feature",
		}, []string{"feature"}),
		degradationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scorekit_analytics_degradations_total",
			Help: "Analytics components omitted from a response, by component",
		}, []string{"component"}),
	}
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest 记录一次 HTTP 请求
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	m.requestTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveStage(_ context.Context, kind pipeline.Kind, _ string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(kind), result(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(_ context.Context, participants int, d time.Duration, _ error) {
	m.runDuration.Observe(d.Seconds())
	m.participantTotal.Add(float64(participants))
}

func (m *Metrics) ObserveDegradation(_ context.Context, component string) {
	m.degradationTotal.WithLabelValues(component).Inc()
}

func (m *Metrics) RecordFallback(_ context.Context, feature string, _ string) {
	m.fallbackTotal.WithLabelValues(feature).Inc()
}

func (m *Metrics) RecordError(_ context.Context, feature string, _ error) {
	m.encodeErrorTotal.WithLabelValues(feature).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
