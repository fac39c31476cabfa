package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subscription_server"

// Metrics 服务指标，使用独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	Transitions          *prometheus.CounterVec
	InvariantViolations  prometheus.Gauge
	WebsocketConnections prometheus.GaugeFunc
}

// New 创建并注册全部指标，onlineConns 为 nil 时不注册连接数指标
func New(onlineConns func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_transitions_total",
			Help:      "Subscription lifecycle operations by result",
		}, []string{"op", "result"}),
		InvariantViolations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscription_invariant_violations",
			Help:      "Users with more than one active subscription at the last audit",
		}),
	}

	reg.MustRegister(m.HTTPRequestsTotal, m.HTTPRequestDuration, m.Transitions, m.InvariantViolations)

	if onlineConns != nil {
		m.WebsocketConnections = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections",
		}, onlineConns)
		reg.MustRegister(m.WebsocketConnections)
	}

	return m
}

// ObserveTransition 记录一次生命周期操作，m 为 nil 时忽略
func (m *Metrics) ObserveTransition(op, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(op, result).Inc()
}

// SetViolations 记录最近一次巡检发现的违规用户数
func (m *Metrics) SetViolations(n int) {
	if m == nil {
		return
	}
	m.InvariantViolations.Set(float64(n))
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
