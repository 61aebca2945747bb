package providers

import (
	"context"
	"encoding/json"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// OpenAIConfig configures an OpenAIAdapter. It also serves OpenAI-compatible
// endpoints (Kimi, and others that speak /v1/chat/completions) via BaseURL.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// OpenAIAdapter implements Adapter against the OpenAI-compatible chat
// completions API. An assistant turn that produced tool calls carries a
// tool_calls list of {id, function:{name, arguments}} with a null content;
// tool outputs are injected as role=tool messages keyed by tool_call_id.
type OpenAIAdapter struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

func (a *OpenAIAdapter) Generate(ctx context.Context, req *AgentTurn) (*models.AgentReply, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     a.cfg.DefaultModel,
		MaxTokens: a.cfg.MaxTokens,
		Messages:  a.convertMessages(req),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = a.convertTools(req.Tools)
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, a.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewProviderEmptyError()
	}
	choice := resp.Choices[0].Message

	reply := &models.AgentReply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			// Non-fatal: downgrade to an empty object rather than fail the turn.
			args = json.RawMessage("{}")
		}
		reply.ToolCalls = append(reply.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	if reply.Content == "" && len(reply.ToolCalls) == 0 {
		return nil, apperrors.NewProviderEmptyError()
	}
	if len(reply.ToolCalls) > 0 {
		reply.StopReason = models.StopReasonToolUse
	} else {
		reply.StopReason = models.StopReasonEndTurn
	}
	return reply, nil
}

func (a *OpenAIAdapter) GenerateText(ctx context.Context, system string, history []models.Message) (string, error) {
	reply, err := a.Generate(ctx, &AgentTurn{System: system, History: history})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (a *OpenAIAdapter) convertMessages(req *AgentTurn) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	for _, t := range req.ToolTurns {
		if len(t.AssistantToolUses) > 0 {
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, tc := range t.AssistantToolUses {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		}
		for _, tr := range t.UserToolResults {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tr.ToolCallID,
				Content:    tr.Content,
			})
		}
	}
	return out
}

func (a *OpenAIAdapter) convertTools(defs []models.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		var params any
		_ = json.Unmarshal(d.InputSchema, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func (a *OpenAIAdapter) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewProviderStatusError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return apperrors.NewProviderTransportError(err)
}
