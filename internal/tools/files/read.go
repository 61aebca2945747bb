package files

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

const defaultMaxLines = 2000

// ReadTool implements read_file: canonicalizes both the workspace root and
// the target, requires the target to be a prefix-descendant of the root,
// and returns 1-based line-numbered chunks bounded by offset/max_lines.
type ReadTool struct {
	Resolver Resolver
}

type readArgs struct {
	Path     string `json:"path"`
	Offset   int    `json:"offset"`
	MaxLines int    `json:"max_lines"`
}

func (t *ReadTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"offset": {"type": "integer", "minimum": 0},
			"max_lines": {"type": "integer", "minimum": 1}
		},
		"required": ["path"]
	}`
	return models.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file within the workspace, returning 1-based line-numbered chunks.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupFS,
	}
}

func (t *ReadTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	var args readArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "read_file", err)
	}
	if strings.TrimSpace(args.Path) == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "read_file", fmt.Errorf("path is required"))
	}
	if args.MaxLines <= 0 {
		args.MaxLines = defaultMaxLines
	}

	resolved, err := t.Resolver.Resolve(args.Path)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolSandbox, "read_file", err)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	lineNo := 0
	taken := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= args.Offset {
			continue
		}
		if taken >= args.MaxLines {
			break
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", lineNo, scanner.Text())
		taken++
	}
	if err := scanner.Err(); err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	return &models.ToolResult{Success: true, Content: sb.String()}, nil
}
