package skillregistry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// InvokeSkillTool is the skill-invocation tool named in spec.md §4
// item 4's tool list: it resolves a loaded skill by name, checks its
// requires_tools/requires_binaries gates, substitutes the caller's
// arguments into the prompt template, and returns the rendered template
// as the tool's content for the loop to fold back into context.
type InvokeSkillTool struct {
	Registry       *Registry
	AvailableTools map[string]bool
}

type invokeSkillArgs struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (t *InvokeSkillTool) Definition() models.ToolDefinition {
	schema := `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Skill name to invoke"},
			"arguments": {"type": "object", "additionalProperties": {"type": "string"}}
		},
		"required": ["name"]
	}`
	return models.ToolDefinition{
		Name:        "invoke_skill",
		Description: "Invoke a loaded skill, rendering its prompt template with the given arguments.",
		InputSchema: json.RawMessage(schema),
		Group:       models.ToolGroupSystem,
	}
}

func (t *InvokeSkillTool) Execute(tc toolruntime.ToolContext, raw json.RawMessage) (*models.ToolResult, error) {
	var args invokeSkillArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "invoke_skill", err)
	}
	if args.Name == "" {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "invoke_skill", fmt.Errorf("name is required"))
	}

	skill, ok := t.Registry.Get(args.Name)
	if !ok {
		return nil, apperrors.NewToolError(apperrors.ToolNotFound, "invoke_skill", fmt.Errorf("skill %q not found or disabled", args.Name))
	}

	if err := checkRequirements(skill, t.AvailableTools); err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	rendered, err := renderTemplate(skill, args.Arguments)
	if err != nil {
		return &models.ToolResult{Success: false, Error: err.Error()}, nil
	}

	metadata, _ := json.Marshal(map[string]any{
		"skill":   skill.Metadata.Name,
		"version": skill.Metadata.Version,
		"source":  skill.Source,
	})
	return &models.ToolResult{Success: true, Content: rendered, Metadata: metadata}, nil
}

// renderTemplate substitutes {{arg}} placeholders with caller-supplied
// values, falling back to each argument's declared default, and fails if a
// required argument is missing both.
func renderTemplate(skill models.Skill, provided map[string]string) (string, error) {
	rendered := skill.PromptTemplate
	rendered = strings.ReplaceAll(rendered, "{baseDir}", skill.Path)

	for name, spec := range skill.Metadata.Arguments {
		value, ok := provided[name]
		if !ok || value == "" {
			value = spec.Default
		}
		if value == "" && spec.Required {
			return "", fmt.Errorf("missing required argument %q", name)
		}
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered, nil
}
