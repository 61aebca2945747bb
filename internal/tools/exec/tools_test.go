package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
)

func testToolContext() toolruntime.ToolContext {
	return toolruntime.ToolContext{Ctx: context.Background()}
}

func TestExecToolRunsCommand(t *testing.T) {
	tool := &ExecTool{Manager: NewManager(t.TempDir())}
	params, _ := json.Marshal(map[string]any{"command": "echo", "args": []string{"hello"}})

	result, err := tool.Execute(testToolContext(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected stdout in result: %s", result.Content)
	}
}

func TestExecToolRejectsDenyListedCommand(t *testing.T) {
	tool := &ExecTool{Manager: NewManager(t.TempDir())}
	params, _ := json.Marshal(map[string]any{"command": "rm", "args": []string{"-rf", "/tmp/x"}})

	_, err := tool.Execute(testToolContext(), params)
	var toolErr *apperrors.ToolError
	if !apperrorsAs(err, &toolErr) {
		t.Fatalf("expected *apperrors.ToolError, got %v", err)
	}
	if toolErr.Reason != apperrors.ToolNotAllowed {
		t.Fatalf("expected NotAllowed, got %v", toolErr.Reason)
	}
}

func TestExecToolRejectsShellMetacharacters(t *testing.T) {
	tool := &ExecTool{Manager: NewManager(t.TempDir())}
	params, _ := json.Marshal(map[string]any{"command": "echo", "args": []string{"hi; id"}})

	_, err := tool.Execute(testToolContext(), params)
	var toolErr *apperrors.ToolError
	if !apperrorsAs(err, &toolErr) {
		t.Fatalf("expected *apperrors.ToolError, got %v", err)
	}
	if toolErr.Reason != apperrors.ToolInvalidArgs {
		t.Fatalf("expected InvalidArgs, got %v", toolErr.Reason)
	}
}

func TestExecToolRejectsWorkingDirEscape(t *testing.T) {
	tool := &ExecTool{Manager: NewManager(t.TempDir())}
	params, _ := json.Marshal(map[string]any{"command": "echo", "args": []string{"hi"}, "working_dir": "../../etc"})

	_, err := tool.Execute(testToolContext(), params)
	var toolErr *apperrors.ToolError
	if !apperrorsAs(err, &toolErr) {
		t.Fatalf("expected *apperrors.ToolError, got %v", err)
	}
	if toolErr.Reason != apperrors.ToolSandbox {
		t.Fatalf("expected Sandbox, got %v", toolErr.Reason)
	}
	if !toolErr.Fatal() {
		t.Fatalf("Sandbox reason should be Fatal")
	}
}

func TestExecToolMissingCommand(t *testing.T) {
	tool := &ExecTool{Manager: NewManager(t.TempDir())}
	params, _ := json.Marshal(map[string]any{})

	_, err := tool.Execute(testToolContext(), params)
	var toolErr *apperrors.ToolError
	if !apperrorsAs(err, &toolErr) {
		t.Fatalf("expected *apperrors.ToolError, got %v", err)
	}
	if toolErr.Reason != apperrors.ToolInvalidArgs {
		t.Fatalf("expected InvalidArgs, got %v", toolErr.Reason)
	}
}

// apperrorsAs is a small errors.As wrapper kept local to avoid importing
// the stdlib errors package solely for this cast in every test.
func apperrorsAs(err error, target **apperrors.ToolError) bool {
	te, ok := err.(*apperrors.ToolError)
	if !ok {
		return false
	}
	*target = te
	return true
}
