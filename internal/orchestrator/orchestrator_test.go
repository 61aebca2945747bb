package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nexuscore/agent/internal/exectracker"
	"github.com/nexuscore/agent/internal/hookbus"
	"github.com/nexuscore/agent/internal/providers"
	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

type fakeClient struct {
	replies []*models.AgentReply
	calls   int
}

func (f *fakeClient) GenerateWithTools(ctx context.Context, req *providers.AgentTurn) (*models.AgentReply, error) {
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil
}

type echoTool struct{ name string }

func (e echoTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{Name: e.name, Description: "echoes its arguments", Group: models.ToolGroupSystem}
}

func (e echoTool) Execute(tc toolruntime.ToolContext, args json.RawMessage) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Content: string(args)}, nil
}

type sandboxTool struct{}

func (sandboxTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{Name: "dangerous", Description: "always sandboxed", Group: models.ToolGroupExec}
}

func (sandboxTool) Execute(tc toolruntime.ToolContext, args json.RawMessage) (*models.ToolResult, error) {
	return nil, apperrors.NewToolError(apperrors.ToolSandbox, "dangerous", errors.New("denied"))
}

func newTestOrchestrator(t *testing.T, client llmClient, tools []toolruntime.Tool) *Orchestrator {
	t.Helper()
	registry := toolruntime.NewRegistry()
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register tool: %v", err)
		}
	}
	tracker := exectracker.New(nil)
	bus := hookbus.New()
	return newWithClient(client, registry, nil, nil, tracker, bus, nil, LoopConfig{})
}

func TestRunReturnsTextOnlyReply(t *testing.T) {
	client := &fakeClient{replies: []*models.AgentReply{
		{Content: "hi", StopReason: models.StopReasonEndTurn},
	}}
	o := newTestOrchestrator(t, client, nil)

	reply, err := o.Run(context.Background(), Request{ChannelID: "c1", UserMessage: "say hi"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reply.Content != "hi" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestRunExecutesToolCallThenReturnsFinalReply(t *testing.T) {
	client := &fakeClient{replies: []*models.AgentReply{
		{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"x":1}`)}}, StopReason: models.StopReasonToolUse},
		{Content: "done", StopReason: models.StopReasonEndTurn},
	}}
	o := newTestOrchestrator(t, client, []toolruntime.Tool{echoTool{name: "echo"}})

	reply, err := o.Run(context.Background(), Request{ChannelID: "c1", UserMessage: "echo something"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reply.Content != "done" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 adapter calls, got %d", client.calls)
	}
}

func TestRunAbortsOnSandboxToolError(t *testing.T) {
	client := &fakeClient{replies: []*models.AgentReply{
		{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "dangerous", Arguments: json.RawMessage(`{}`)}}, StopReason: models.StopReasonToolUse},
	}}
	o := newTestOrchestrator(t, client, []toolruntime.Tool{sandboxTool{}})

	_, err := o.Run(context.Background(), Request{ChannelID: "c1", UserMessage: "do something dangerous"})
	if err == nil {
		t.Fatalf("expected sandbox tool error to abort the run")
	}
	var toolErr *apperrors.ToolError
	if !errors.As(err, &toolErr) || toolErr.Reason != apperrors.ToolSandbox {
		t.Fatalf("expected a sandbox ToolError, got %v", err)
	}
}

func TestRunFailsAfterIterationBudget(t *testing.T) {
	replies := make([]*models.AgentReply, 0, 11)
	for i := 0; i < 11; i++ {
		replies = append(replies, &models.AgentReply{
			ToolCalls:  []models.ToolCall{{ID: "call", Name: "echo", Arguments: json.RawMessage(`{}`)}},
			StopReason: models.StopReasonToolUse,
		})
	}
	client := &fakeClient{replies: replies}
	o := newTestOrchestrator(t, client, []toolruntime.Tool{echoTool{name: "echo"}})

	_, err := o.Run(context.Background(), Request{ChannelID: "c1", UserMessage: "loop forever"})
	if err == nil {
		t.Fatalf("expected iteration budget error")
	}
	var orchErr *apperrors.OrchestratorError
	if !errors.As(err, &orchErr) || orchErr.Reason != apperrors.OrchestratorIterationBudget {
		t.Fatalf("expected OrchestratorIterationBudget, got %v", err)
	}
}

func TestRunClearsTrackerStateAfterCompletion(t *testing.T) {
	client := &fakeClient{replies: []*models.AgentReply{
		{Content: "hi", StopReason: models.StopReasonEndTurn},
	}}
	o := newTestOrchestrator(t, client, nil)

	if _, err := o.Run(context.Background(), Request{ChannelID: "c1", UserMessage: "hi"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, active := o.tracker.ActiveExecution("c1"); active {
		t.Fatalf("expected no active execution once the run completes")
	}
}
