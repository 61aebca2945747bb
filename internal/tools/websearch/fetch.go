package websearch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// WebFetchTool implements web_fetch: rejects non-http(s) URLs, fetches with
// a 30s timeout and fixed user-agent, and optionally flattens HTML to text.
type WebFetchTool struct {
	extractor *ContentExtractor
}

// NewWebFetchTool creates a web_fetch tool with the default extractor.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{extractor: NewContentExtractor()}
}

type fetchArgs struct {
	URL         string `json:"url"`
	ExtractText bool   `json:"extract_text"`
	MaxLength   int    `json:"max_length"`
}

func (t *WebFetchTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "URL to fetch (http/https only)"},
			"extract_text": {"type": "boolean", "description": "Flatten HTML to readable text. Default: true"},
			"max_length": {"type": "integer", "minimum": 0, "description": "Maximum characters to return (default 10000)"}
		},
		"required": ["url"]
	}`
	return models.ToolDefinition{
		Name:        "web_fetch",
		Description: "Fetch a URL and optionally extract its readable text.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupWeb,
	}
}

func (t *WebFetchTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	args := fetchArgs{ExtractText: true, MaxLength: 10000}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "web_fetch", err)
	}
	if strings.TrimSpace(args.URL) == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "web_fetch", fmt.Errorf("url is required"))
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "web_fetch", fmt.Errorf("url must be http or https"))
	}
	if args.MaxLength <= 0 {
		args.MaxLength = 10000
	}

	content, contentType, err := t.extractor.FetchAndMaybeExtract(tc.Ctx, args.URL, args.ExtractText)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	truncated := false
	if len(content) > args.MaxLength {
		content = content[:args.MaxLength]
		truncated = true
	}

	metadata, _ := json.Marshal(map[string]any{
		"url":          args.URL,
		"content_type": contentType,
		"truncated":    truncated,
	})

	return &models.ToolResult{Success: true, Content: content, Metadata: metadata}, nil
}
