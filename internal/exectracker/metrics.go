package exectracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nexuscore/agent/pkg/models"
)

// PrometheusMetrics holds the counters/histograms the tracker's task
// lifecycle drives: tool execution counts and latencies, and per-execution
// duration and token totals. Scoped to the agentic loop and tool runtime per
// spec §4.4 ("monotonic metrics"); registered via promauto against whatever
// prometheus.Registerer the caller passes (nil uses the default registry).
type PrometheusMetrics struct {
	ToolExecutions    *prometheus.CounterVec
	ToolDuration      *prometheus.HistogramVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionTokens   prometheus.Counter
}

// NewPrometheusMetrics registers the metrics against reg. Pass nil to use
// prometheus's default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexus_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexus_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexus_execution_duration_seconds",
				Help:    "Duration of complete agentic loop executions in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"channel_id"},
		),
		ExecutionTokens: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexus_execution_tokens_total",
				Help: "Total tokens consumed across completed executions",
			},
		),
	}
}

// metricsBroadcaster observes the tracker's own task.completed/
// execution.completed events and records them as Prometheus metrics,
// delegating every event to next unchanged. It never touches the tracker's
// mutation path, so wrapping it is safe to do unconditionally.
type metricsBroadcaster struct {
	next    Broadcaster
	metrics *PrometheusMetrics
}

// NewMetricsBroadcaster wraps next so every event it already emits also
// updates metrics. Returns next unchanged if metrics is nil.
func NewMetricsBroadcaster(next Broadcaster, metrics *PrometheusMetrics) Broadcaster {
	if metrics == nil {
		return next
	}
	return &metricsBroadcaster{next: next, metrics: metrics}
}

func (b *metricsBroadcaster) Emit(name string, payload any) {
	b.next.Emit(name, payload)

	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}

	switch name {
	case "task.completed":
		if fields["type"] != models.TaskTypeTool {
			return
		}
		description, _ := fields["description"].(string)
		status := "success"
		if fields["status"] == models.TaskStatusError {
			status = "error"
		}
		metrics, _ := fields["metrics"].(models.TaskMetrics)
		b.metrics.ToolExecutions.WithLabelValues(description, status).Inc()
		b.metrics.ToolDuration.WithLabelValues(description).Observe(
			time.Duration(metrics.DurationMS * int64(time.Millisecond)).Seconds())

	case "execution.completed":
		channelID, _ := fields["channel_id"].(string)
		metrics, _ := fields["metrics"].(models.TaskMetrics)
		b.metrics.ExecutionDuration.WithLabelValues(channelID).Observe(
			time.Duration(metrics.DurationMS * int64(time.Millisecond)).Seconds())
		b.metrics.ExecutionTokens.Add(float64(metrics.TokensUsed))
	}
}
