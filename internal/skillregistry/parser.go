// Package skillregistry implements the priority-stacked skill loader:
// bundled < managed < workspace directories, each scanned for SKILL.md
// front-matter + prompt body, per spec.md §4 item 4.
package skillregistry

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/agent/pkg/models"
)

const (
	skillFilename        = "SKILL.md"
	frontmatterDelimiter = "---"
)

// parseSkillFile reads and parses one SKILL.md into a models.Skill (source
// and path are filled in by the caller, which knows which root it came
// from).
func parseSkillFile(path string) (*models.Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	return parseSkill(data, filepath.Dir(path))
}

func parseSkill(data []byte, skillDir string) (*models.Skill, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var fm frontmatterYAML
	if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if err := validateSkillName(fm.Name); err != nil {
		return nil, err
	}
	metadata := fm.toMetadata()

	return &models.Skill{
		Metadata:       metadata,
		PromptTemplate: strings.TrimSpace(string(body)),
		Path:           skillDir,
		Enabled:        true,
	}, nil
}

// frontmatterYAML mirrors models.SkillMetadata with the snake_case YAML
// keys SKILL.md front-matter actually uses.
type frontmatterYAML struct {
	Name             string                          `yaml:"name"`
	Description      string                          `yaml:"description"`
	Version          string                           `yaml:"version"`
	RequiresTools    []string                         `yaml:"requires_tools"`
	RequiresBinaries []string                         `yaml:"requires_binaries"`
	Tags             []string                         `yaml:"tags"`
	Arguments        map[string]frontmatterYAMLArgument `yaml:"arguments"`
}

type frontmatterYAMLArgument struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

func (fm frontmatterYAML) toMetadata() models.SkillMetadata {
	var args map[string]models.SkillArgument
	if len(fm.Arguments) > 0 {
		args = make(map[string]models.SkillArgument, len(fm.Arguments))
		for name, a := range fm.Arguments {
			args[name] = models.SkillArgument{
				Description: a.Description,
				Required:    a.Required,
				Default:     a.Default,
			}
		}
	}
	return models.SkillMetadata{
		Name:             fm.Name,
		Description:      fm.Description,
		Version:          fm.Version,
		RequiresTools:    fm.RequiresTools,
		RequiresBinaries: fm.RequiresBinaries,
		Tags:             fm.Tags,
		Arguments:        args,
	}
}

func validateSkillName(name string) error {
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("skill name must be lowercase alphanumeric with hyphens: got %q", name)
		}
	}
	return nil
}

// splitFrontmatter separates the leading "---"-delimited YAML block from
// the markdown body that follows it.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	closed := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == frontmatterDelimiter {
			closed = true
			break
		}
		frontmatterLines = append(frontmatterLines, scanner.Text())
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan skill file: %w", err)
	}

	return []byte(strings.Join(frontmatterLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}
