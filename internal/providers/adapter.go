// Package providers implements the three adapters that normalize an LLM
// endpoint's wire dialect into the canonical models.AgentReply contract, and
// the AgentClient façade that picks one per request.
package providers

import (
	"context"

	"github.com/nexuscore/agent/pkg/models"
)

// TurnBlock is the minimum shape needed to reconstruct a provider-specific
// conversation after local tool execution. Exactly one of the two fields is
// set.
type TurnBlock struct {
	AssistantToolUses []models.ToolCall
	UserToolResults   []models.ToolResponse
}

// AgentTurn is the adapter-agnostic request for one Generate call.
type AgentTurn struct {
	System    string
	History   []models.Message
	ToolTurns []TurnBlock
	Tools     []models.ToolDefinition
}

// Adapter is the contract every provider dialect implements.
type Adapter interface {
	Generate(ctx context.Context, req *AgentTurn) (*models.AgentReply, error)
}

// TextAdapter is implemented by adapters that can also answer a
// tools-less text completion; AgentClient.GenerateText uses it to avoid
// sending tool definitions to endpoints that don't act on them.
type TextAdapter interface {
	Adapter
	GenerateText(ctx context.Context, system string, history []models.Message) (string, error)
}
