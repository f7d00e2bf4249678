// Package metrics 提供关联引擎的 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/log"
)

// 丢弃原因
const (
	DropUnresolvable      = "unresolvable"
	DropUnknownDescriptor = "unknown_descriptor"
	DropUnknownAction     = "unknown_action"
	DropMissingField      = "missing_field"
)

// Metrics 关联引擎指标
// 所有方法都允许 nil 接收者，未启用指标时组件无需判空
type Metrics struct {
	registry *prometheus.Registry

	recordsRead     prometheus.Counter
	decodeErrors    prometheus.Counter
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	queueDropped    *prometheus.CounterVec
	tracerRunning   prometheus.Gauge
	openDescriptors prometheus.Gauge
}

// New 创建指标并注册到独立的 registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ransomcare"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracer",
			Name:      "records_read_total",
			Help:      "Total non-blank lines read from the tracing agent",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracer",
			Name:      "decode_errors_total",
			Help:      "Total lines that failed to decode",
		}),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "events_published_total",
				Help:      "Total typed events published",
			},
			[]string{"event_type"},
		),
		eventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "correlator",
				Name:      "records_dropped_total",
				Help:      "Total raw records dropped during correlation",
			},
			[]string{"reason"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decision",
				Name:      "verdicts_total",
				Help:      "Total operator verdicts",
			},
			[]string{"verdict"},
		),
		queueDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "queue_dropped_total",
				Help:      "Total events dropped because a subscriber queue was full",
			},
			[]string{"subscriber"},
		),
		tracerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracer",
			Name:      "running",
			Help:      "1 while the tracing agent is running",
		}),
		openDescriptors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "correlator",
			Name:      "open_descriptors",
			Help:      "Descriptors currently tracked as open",
		}),
	}

	m.registry.MustRegister(
		m.recordsRead,
		m.decodeErrors,
		m.eventsPublished,
		m.eventsDropped,
		m.decisions,
		m.queueDropped,
		m.tracerRunning,
		m.openDescriptors,
	)
	return m
}

// Registry 返回指标 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRead 记录读取到一行非空记录
func (m *Metrics) RecordRead() {
	if m == nil {
		return
	}
	m.recordsRead.Inc()
}

// DecodeError 记录一次解码失败
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// EventPublished 按事件类型计数已发布事件
func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordDropped 按原因计数被丢弃的原始记录
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// Verdict 按结果计数裁决
func (m *Metrics) Verdict(verdict string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(verdict).Inc()
}

// QueueDropped 计数订阅者队列满时丢弃的事件
func (m *Metrics) QueueDropped(subscriber string) {
	if m == nil {
		return
	}
	m.queueDropped.WithLabelValues(subscriber).Inc()
}

// SetTracerRunning 设置 agent 运行状态
func (m *Metrics) SetTracerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.tracerRunning.Set(1)
	} else {
		m.tracerRunning.Set(0)
	}
}

// SetOpenDescriptors 设置当前打开的描述符数量
func (m *Metrics) SetOpenDescriptors(n int) {
	if m == nil {
		return
	}
	m.openDescriptors.Set(float64(n))
}

// Serve 在 addr 上暴露 /metrics，ctx 取消后优雅关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
