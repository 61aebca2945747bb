package exectracker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nexuscore/agent/pkg/models"
)

func TestMetricsBroadcasterRecordsToolExecutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	rec := &recordingBroadcaster{}
	broadcaster := NewMetricsBroadcaster(rec, metrics)

	tr := New(broadcaster)
	execID, err := tr.StartExecution("chan-1", "chat")
	if err != nil {
		t.Fatalf("start execution: %v", err)
	}
	taskID, err := tr.StartTask("chan-1", &execID, models.TaskTypeTool, "read_file", "Reading file")
	if err != nil {
		t.Fatalf("start task: %v", err)
	}
	if err := tr.CompleteTask(taskID); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if _, err := tr.CompleteExecution("chan-1"); err != nil {
		t.Fatalf("complete execution: %v", err)
	}

	if got := testutil.ToFloat64(metrics.ToolExecutions.WithLabelValues("read_file", "success")); got != 1 {
		t.Fatalf("expected one successful read_file execution, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.ToolDuration); got == 0 {
		t.Fatalf("expected tool duration observations to be recorded")
	}
	if got := testutil.CollectAndCount(metrics.ExecutionDuration); got == 0 {
		t.Fatalf("expected execution duration observations to be recorded")
	}

	// the wrapped broadcaster still sees every event.
	if len(rec.events) == 0 {
		t.Fatalf("expected metricsBroadcaster to delegate events to next")
	}
}

func TestMetricsBroadcasterRecordsToolFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	broadcaster := NewMetricsBroadcaster(&recordingBroadcaster{}, metrics)

	tr := New(broadcaster)
	execID, _ := tr.StartExecution("chan-2", "chat")
	taskID, _ := tr.StartTask("chan-2", &execID, models.TaskTypeTool, "exec", "Running command")
	if err := tr.CompleteTaskWithError(taskID, errTestBoom); err != nil {
		t.Fatalf("complete task with error: %v", err)
	}

	if got := testutil.ToFloat64(metrics.ToolExecutions.WithLabelValues("exec", "error")); got != 1 {
		t.Fatalf("expected one failed exec execution, got %v", got)
	}
}

func TestNewMetricsBroadcasterPassesThroughWhenMetricsNil(t *testing.T) {
	rec := &recordingBroadcaster{}
	b := NewMetricsBroadcaster(rec, nil)
	b.Emit("task.started", map[string]any{"id": "x"})
	if len(rec.events) != 1 {
		t.Fatalf("expected NewMetricsBroadcaster(nil) to return next unchanged")
	}
}

var errTestBoom = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
