package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// GenericConfig configures a GenericTextAdapter for endpoints without
// native tool calling (e.g. a llama.cpp-compatible /api/chat).
type GenericConfig struct {
	Endpoint     string
	APIKey       string
	DefaultModel string
	MaxTokens    int
	HTTPClient   *http.Client
}

// genericEnvelope is the JSON document the model is instructed to emit.
type genericEnvelope struct {
	Body     string           `json:"body"`
	ToolCall *genericToolCall `json:"tool_call"`
}

type genericToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolParams map[string]any `json:"tool_params"`
}

const genericEnvelopeInstruction = `Respond with exactly one JSON document of the shape ` +
	`{"body": string, "tool_call": null | {"tool_name": string, "tool_params": object}}. ` +
	`Emit nothing else outside that document.`

// GenericTextAdapter implements Adapter for endpoints that lack native tool
// calling: the model is asked to emit a single JSON envelope and the
// adapter extracts the first balanced object from the raw reply text,
// tolerating surrounding prose.
type GenericTextAdapter struct {
	cfg GenericConfig
}

func NewGenericTextAdapter(cfg GenericConfig) *GenericTextAdapter {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &GenericTextAdapter{cfg: cfg}
}

type genericChatRequest struct {
	Model    string          `json:"model"`
	Messages []genericChatMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type genericChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type genericChatResponse struct {
	Message genericChatMessage `json:"message"`
}

func (a *GenericTextAdapter) Generate(ctx context.Context, req *AgentTurn) (*models.AgentReply, error) {
	system := strings.TrimSpace(req.System + "\n\n" + genericEnvelopeInstruction)

	chatReq := genericChatRequest{Model: a.cfg.DefaultModel}
	chatReq.Messages = append(chatReq.Messages, genericChatMessage{Role: "system", Content: system})
	for _, m := range req.History {
		chatReq.Messages = append(chatReq.Messages, genericChatMessage{Role: string(m.Role), Content: m.Content})
	}
	for _, t := range req.ToolTurns {
		for _, tc := range t.AssistantToolUses {
			chatReq.Messages = append(chatReq.Messages, genericChatMessage{
				Role:    "assistant",
				Content: fmt.Sprintf("tool_call: %s(%s)", tc.Name, string(tc.Arguments)),
			})
		}
		for _, tr := range t.UserToolResults {
			chatReq.Messages = append(chatReq.Messages, genericChatMessage{Role: "user", Content: tr.Content})
		}
	}

	raw, err := a.call(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return parseGenericReply(raw)
}

func (a *GenericTextAdapter) GenerateText(ctx context.Context, system string, history []models.Message) (string, error) {
	reply, err := a.Generate(ctx, &AgentTurn{System: system, History: history})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (a *GenericTextAdapter) call(ctx context.Context, body genericChatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", apperrors.NewProviderParseError(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewProviderTransportError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", apperrors.NewProviderTransportError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewProviderStatusError(resp.StatusCode, string(respBody))
	}

	var parsed genericChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperrors.NewProviderParseError(err)
	}
	return parsed.Message.Content, nil
}

// parseGenericReply extracts the first balanced JSON object from raw,
// tolerating surrounding prose. Malformed JSON downgrades to a plain-text
// reply with no tool calls rather than failing the turn.
func parseGenericReply(raw string) (*models.AgentReply, error) {
	obj := extractBalancedObject(raw)
	if obj == "" {
		return &models.AgentReply{Content: raw, StopReason: models.StopReasonEndTurn}, nil
	}

	var env genericEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return &models.AgentReply{Content: raw, StopReason: models.StopReasonEndTurn}, nil
	}

	reply := &models.AgentReply{Content: env.Body, StopReason: models.StopReasonEndTurn}
	if env.ToolCall != nil {
		args, err := json.Marshal(env.ToolCall.ToolParams)
		if err != nil {
			args = []byte("{}")
		}
		reply.ToolCalls = []models.ToolCall{{
			ID:        uuid.NewString(),
			Name:      env.ToolCall.ToolName,
			Arguments: args,
		}}
		reply.StopReason = models.StopReasonToolUse
	}
	return reply, nil
}

// extractBalancedObject returns the first top-level balanced {...} substring
// of s, respecting string literals and escapes, or "" if none closes.
func extractBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
