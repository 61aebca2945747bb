package evm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/internal/x402"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// x402Hosts lists the hostnames the paid-fetch tool allows, keeping it from
// being used as a general-purpose HTTP client (that's what the exec/web_fetch
// tools are for).
var x402Hosts = []string{"quoter.defirelay.com", "rpc.defirelay.com", "defirelay.com"}

func isX402Endpoint(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, host := range x402Hosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// X402FetchTool is x402_fetch: paid HTTP requests against x402-enabled
// endpoints, with an optional jq-style filter applied to the JSON response.
type X402FetchTool struct{}

type x402FetchArgs struct {
	URL      string         `json:"url"`
	Method   string         `json:"method"`
	Body     map[string]any `json:"body"`
	JQFilter string         `json:"jq_filter"`
}

func (t *X402FetchTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "x402-enabled endpoint URL (e.g. quoter.defirelay.com, rpc.defirelay.com)"},
			"method": {"type": "string", "enum": ["GET", "POST"], "default": "GET"},
			"body": {"type": "object", "description": "Request body for POST requests"},
			"jq_filter": {"type": "string", "description": "jq-style filter, e.g. '.transaction' or '{to: .transaction.to, data: .transaction.data}'"}
		},
		"required": ["url"]
	}`
	return models.ToolDefinition{
		Name:        "x402_fetch",
		Description: "Make HTTP requests to x402-enabled endpoints with automatic USDC payment on a 402 challenge.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupWeb,
	}
}

func (t *X402FetchTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	args := x402FetchArgs{Method: "GET"}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "x402_fetch", err)
	}
	if !isX402Endpoint(args.URL) {
		return &models.ToolResult{
			Success: false,
			Error:   "url must be an x402-enabled endpoint (e.g. quoter.defirelay.com, rpc.defirelay.com); use exec or web_fetch for regular HTTP requests",
		}, nil
	}
	method := strings.ToUpper(args.Method)
	if method != "GET" && method != "POST" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "x402_fetch", fmt.Errorf("method must be GET or POST"))
	}

	client, err := x402.NewClient(tc.APIKeys["burner_wallet"])
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	var resp *x402.Response
	if method == "GET" {
		resp, err = client.Get(tc.Ctx, args.URL)
	} else {
		body := args.Body
		if body == nil {
			body = map[string]any{}
		}
		resp, err = client.Post(tc.Ctx, args.URL, body)
	}
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &models.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("HTTP error %d: %s", resp.StatusCode, string(resp.Body)),
		}, nil
	}

	var decoded any
	content := string(resp.Body)
	if err := json.Unmarshal(resp.Body, &decoded); err == nil {
		if args.JQFilter != "" {
			filtered, err := applyJQFilter(decoded, args.JQFilter)
			if err != nil {
				return &models.ToolResult{Success: false, Error: fmt.Sprintf("filter error: %s", err)}, nil
			}
			if pretty, err := prettyJSON(filtered); err == nil {
				content = pretty
			}
		} else if pretty, err := prettyJSON(decoded); err == nil {
			content = pretty
		}
	}

	metadata := map[string]any{"url": args.URL, "method": method, "status": resp.StatusCode}
	if resp.Payment != nil {
		metadata["payment"] = resp.Payment
	}
	metaJSON, _ := json.Marshal(metadata)

	return &models.ToolResult{Success: true, Content: content, Metadata: metaJSON}, nil
}
