// Package metrics exposes Prometheus instrumentation for tool invocations.
//
// Each ToolMetrics owns its registry, so several servers in one process do not
// collide on the default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "freqtrade_mcp"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type ToolMetrics struct {
	registry *prometheus.Registry

	// CallsTotal counts tool invocations. Labels: tool, mode, outcome.
	CallsTotal *prometheus.CounterVec

	// CallDurationSeconds measures end-to-end tool latency. Labels: tool.
	CallDurationSeconds *prometheus.HistogramVec

	// ToolErrorsTotal counts failed tool calls by error class, including
	// validation failures that never reach Freqtrade. Labels: class.
	ToolErrorsTotal *prometheus.CounterVec

	// UpstreamUp is 1 when the last Freqtrade ping succeeded.
	UpstreamUp prometheus.Gauge
}

func NewToolMetrics() *ToolMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ToolMetrics{
		registry: reg,
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total tool invocations by tool, mode and outcome",
			},
			[]string{"tool", "mode", "outcome"},
		),
		CallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool invocation latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"tool"},
		),
		ToolErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_errors_total",
				Help:      "Failed tool invocations by error class",
			},
			[]string{"class"},
		),
		UpstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "Whether the last Freqtrade ping succeeded (1) or failed (0)",
		}),
	}
	reg.MustRegister(m.CallsTotal, m.CallDurationSeconds, m.ToolErrorsTotal, m.UpstreamUp)
	return m
}

// Observe records one finished invocation. A nil receiver is a no-op.
func (m *ToolMetrics) Observe(tool, mode string, started time.Time, errClass string) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if errClass != "" {
		outcome = OutcomeError
		m.ToolErrorsTotal.WithLabelValues(errClass).Inc()
	}
	m.CallsTotal.WithLabelValues(tool, mode, outcome).Inc()
	m.CallDurationSeconds.WithLabelValues(tool).Observe(time.Since(started).Seconds())
}

func (m *ToolMetrics) SetUpstreamUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.UpstreamUp.Set(1)
		return
	}
	m.UpstreamUp.Set(0)
}

func (m *ToolMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
