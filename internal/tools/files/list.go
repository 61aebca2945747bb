package files

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// ListTool implements list_files: returns relative paths under a directory
// with type and size, same sandboxing as ReadTool/WriteTool.
type ListTool struct {
	Resolver Resolver
}

type listArgs struct {
	Path string `json:"path"`
}

type listEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func (t *ListTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`
	return models.ToolDefinition{
		Name:        "list_files",
		Description: "List files and directories under a workspace-relative path.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupFS,
	}
}

func (t *ListTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	var args listArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "list_files", err)
	}
	if strings.TrimSpace(args.Path) == "" {
		args.Path = "."
	}

	resolved, err := t.Resolver.Resolve(args.Path)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolSandbox, "list_files", err)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	out := make([]listEntry, 0, len(entries))
	for _, e := range entries {
		typ := "file"
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		if e.IsDir() {
			typ = "dir"
		}
		out = append(out, listEntry{
			Path: filepath.Join(args.Path, e.Name()),
			Type: typ,
			Size: size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInternal, "list_files", err)
	}
	return &models.ToolResult{Success: true, Content: string(payload), Metadata: payload}, nil
}
