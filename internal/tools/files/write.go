package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// WriteTool implements write_file: creates missing parent directories and
// requires the target to resolve inside the workspace, same as ReadTool.
type WriteTool struct {
	Resolver Resolver
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

func (t *WriteTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"},
			"append": {"type": "boolean"}
		},
		"required": ["path", "content"]
	}`
	return models.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace, creating parent directories as needed.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupFS,
	}
}

func (t *WriteTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	var args writeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "write_file", err)
	}
	if strings.TrimSpace(args.Path) == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "write_file", fmt.Errorf("path is required"))
	}

	resolved, err := t.Resolver.Resolve(args.Path)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolSandbox, "write_file", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if args.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}
	defer f.Close()

	n, err := f.WriteString(args.Content)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	return &models.ToolResult{
		Success: true,
		Content: fmt.Sprintf("wrote %d bytes to %s", n, args.Path),
	}, nil
}
