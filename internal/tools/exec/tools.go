package exec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// ExecTool is the shell-exec tool, backed by a Manager enforcing the
// deny-list + metacharacter + workspace-confinement sandbox.
type ExecTool struct {
	Manager *Manager
}

type execArgs struct {
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	WorkingDir     string            `json:"working_dir"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Env            map[string]string `json:"env"`
}

func (t *ExecTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"args": {"type": "array", "items": {"type": "string"}},
			"working_dir": {"type": "string"},
			"timeout_seconds": {"type": "integer", "minimum": 0}
		},
		"required": ["command"]
	}`
	return models.ToolDefinition{
		Name:        "exec",
		Description: "Execute a command in the workspace. Commands are restricted for security; this never invokes a shell.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupExec,
	}
}

func (t *ExecTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	var args execArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "exec", err)
	}
	if args.Command == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "exec", fmt.Errorf("command is required"))
	}

	env := args.Env
	if gh, ok := tc.APIKeys["github"]; ok && gh != "" {
		if env == nil {
			env = map[string]string{}
		}
		env["__github_token__"] = gh
	}

	result, err := t.Manager.Run(
		tc.Ctx,
		args.Command,
		args.Args,
		args.WorkingDir,
		time.Duration(args.TimeoutSeconds)*time.Second,
		env,
	)
	if err != nil {
		// Manager.Run already returns a reason-classified *apperrors.ToolError.
		return nil, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
		"working_dir": result.Cwd,
		"argv":        append([]string{result.Command}, result.Args...),
		"truncated":   result.Truncated,
	})

	return &models.ToolResult{
		Success:  result.Success,
		Content:  result.Output,
		Metadata: metadata,
	}, nil
}
