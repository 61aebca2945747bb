package providers

import (
	"context"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// AgentClient constructs the right Adapter from AgentSettings once per
// request and exposes both the tool-capable and text-only entry points used
// by the orchestrator and by memory consolidation's LLM merge step.
type AgentClient struct {
	settings models.AgentSettings
}

func NewAgentClient(settings models.AgentSettings) *AgentClient {
	return &AgentClient{settings: settings}
}

func (c *AgentClient) buildAdapter() (Adapter, error) {
	switch c.settings.Archetype {
	case models.ArchetypeTextJSON:
		return NewGenericTextAdapter(GenericConfig{
			Endpoint:     c.settings.Endpoint,
			APIKey:       c.settings.APIKey,
			DefaultModel: c.settings.Model,
			MaxTokens:    c.settings.MaxTokens,
		}), nil
	default:
		switch c.settings.Provider {
		case models.ProviderClaude:
			return NewClaudeAdapter(ClaudeConfig{
				APIKey:       c.settings.APIKey,
				BaseURL:      c.settings.Endpoint,
				DefaultModel: c.settings.Model,
				MaxTokens:    c.settings.MaxTokens,
			})
		case models.ProviderOpenAICompatible:
			return NewOpenAIAdapter(OpenAIConfig{
				APIKey:       c.settings.APIKey,
				BaseURL:      c.settings.Endpoint,
				DefaultModel: c.settings.Model,
				MaxTokens:    c.settings.MaxTokens,
			})
		case models.ProviderLocal:
			return NewGenericTextAdapter(GenericConfig{
				Endpoint:     c.settings.Endpoint,
				DefaultModel: c.settings.Model,
				MaxTokens:    c.settings.MaxTokens,
			}), nil
		default:
			return nil, apperrors.NewProviderUnsupportedError(string(c.settings.Provider))
		}
	}
}

// GenerateWithTools runs one adapter turn. When req carries no tool
// definitions, it delegates to GenerateText and returns a reply with no
// tool_calls.
func (c *AgentClient) GenerateWithTools(ctx context.Context, req *AgentTurn) (*models.AgentReply, error) {
	adapter, err := c.buildAdapter()
	if err != nil {
		return nil, err
	}
	if len(req.Tools) == 0 {
		return c.generateText(ctx, adapter, req)
	}
	return adapter.Generate(ctx, req)
}

// GenerateText asks for a plain completion with no tool definitions — used
// by memory consolidation's LLM-merge step and by any caller that only
// wants text back.
func (c *AgentClient) GenerateText(ctx context.Context, system string, history []models.Message) (string, error) {
	adapter, err := c.buildAdapter()
	if err != nil {
		return "", err
	}
	reply, err := c.generateText(ctx, adapter, &AgentTurn{System: system, History: history})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (c *AgentClient) generateText(ctx context.Context, adapter Adapter, req *AgentTurn) (*models.AgentReply, error) {
	if ta, ok := adapter.(TextAdapter); ok && len(req.Tools) == 0 {
		text, err := ta.GenerateText(ctx, req.System, req.History)
		if err != nil {
			return nil, err
		}
		return &models.AgentReply{Content: text, ToolCalls: nil, StopReason: models.StopReasonEndTurn}, nil
	}
	return adapter.Generate(ctx, req)
}
