package providers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// ClaudeConfig configures a ClaudeAdapter.
type ClaudeConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// ClaudeAdapter implements Adapter against Anthropic's Messages API.
// Messages are arrays of content blocks ({type: text | tool_use |
// tool_result}); the system prompt is a top-level field, never part of the
// history array.
type ClaudeAdapter struct {
	client anthropic.Client
	cfg    ClaudeConfig
}

// NewClaudeAdapter builds an adapter from cfg. APIKey is required; callers
// construct one adapter per AgentSettings row the way AgentClient does.
func NewClaudeAdapter(cfg ClaudeConfig) (*ClaudeAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude: api key required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeAdapter{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (a *ClaudeAdapter) Generate(ctx context.Context, req *AgentTurn) (*models.AgentReply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.DefaultModel),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages:  a.convertMessages(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = a.convertTools(req.Tools)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	reply := &models.AgentReply{}
	var toolCalls []models.ToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Content += variant.Text
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: variant.Input,
			})
		}
	}
	reply.ToolCalls = toolCalls

	if reply.Content == "" && len(toolCalls) == 0 {
		return nil, apperrors.NewProviderEmptyError()
	}

	if len(toolCalls) > 0 {
		reply.StopReason = models.StopReasonToolUse
	} else {
		reply.StopReason = models.StopReasonEndTurn
	}
	return reply, nil
}

func (a *ClaudeAdapter) GenerateText(ctx context.Context, system string, history []models.Message) (string, error) {
	reply, err := a.Generate(ctx, &AgentTurn{System: system, History: history})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// convertMessages builds the provider's ordered message array from the
// turn's history followed by its tool-call/tool-result blocks, mirroring
// how a multi-turn Claude conversation reconstructs local tool execution.
func (a *ClaudeAdapter) convertMessages(req *AgentTurn) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, m := range req.History {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		default:
			out = append(out, anthropic.NewUserMessage(block))
		}
	}

	for _, t := range req.ToolTurns {
		if len(t.AssistantToolUses) > 0 {
			var blocks []anthropic.ContentBlockParamUnion
			for _, tc := range t.AssistantToolUses {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, rawToAny(tc.Arguments), tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
		if len(t.UserToolResults) > 0 {
			var blocks []anthropic.ContentBlockParamUnion
			for _, tr := range t.UserToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func (a *ClaudeAdapter) convertTools(defs []models.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: rawToAny(d.InputSchema),
				},
			},
		})
	}
	return out
}

func (a *ClaudeAdapter) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apperrors.NewProviderStatusError(apiErr.StatusCode, apiErr.RawJSON())
	}
	log.Debug().Err(err).Str("component", "providers.claude").Msg("transport error")
	return apperrors.NewProviderTransportError(err)
}

func rawToAny(raw []byte) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
