package skillregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nexuscore/agent/pkg/models"
)

// Registry holds the loaded, priority-resolved skill set. It is read-mostly:
// writes happen only on Load and SetEnabled, per spec.md §5.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*models.Skill

	// roots maps a source tier to its directory; Load scans each in
	// ascending priority order so a higher tier overrides a same-named
	// lower one.
	roots map[models.SkillSource]string
}

// NewRegistry creates an empty registry scanning the given source roots.
// Any root may be omitted (zero value "" is skipped).
func NewRegistry(bundledDir, managedDir, workspaceDir string) *Registry {
	return &Registry{
		skills: make(map[string]*models.Skill),
		roots: map[models.SkillSource]string{
			models.SkillSourceBundled:   bundledDir,
			models.SkillSourceManaged:   managedDir,
			models.SkillSourceWorkspace: workspaceDir,
		},
	}
}

// Load (re)scans all configured roots and replaces the registry's contents.
// Within a single tier, the last name collision wins (directories are read
// in os.ReadDir's sorted order); across tiers, a higher-priority source
// always overrides a lower one regardless of scan order.
func (r *Registry) Load() error {
	discovered := make(map[string]*models.Skill)

	for _, source := range []models.SkillSource{
		models.SkillSourceBundled,
		models.SkillSourceManaged,
		models.SkillSourceWorkspace,
	} {
		root := r.roots[source]
		if root == "" {
			continue
		}
		found, err := scanDir(root, source)
		if err != nil {
			return fmt.Errorf("scan %s skills: %w", source, err)
		}
		for _, skill := range found {
			existing, ok := discovered[skill.Metadata.Name]
			if !ok || skill.Source.Rank() >= existing.Source.Rank() {
				discovered[skill.Metadata.Name] = skill
			}
		}
	}

	r.mu.Lock()
	r.skills = discovered
	r.mu.Unlock()
	return nil
}

// scanDir scans root's immediate subdirectories for a SKILL.md file each.
func scanDir(root string, source models.SkillSource) ([]*models.Skill, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var skills []*models.Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillFile := filepath.Join(root, entry.Name(), skillFilename)
		if _, err := os.Stat(skillFile); os.IsNotExist(err) {
			continue
		}
		skill, err := parseSkillFile(skillFile)
		if err != nil {
			continue // malformed skill: skip, don't fail the whole load
		}
		skill.Source = source
		skills = append(skills, skill)
	}
	return skills, nil
}

// Get returns the named skill, or false if it isn't loaded or is disabled.
func (r *Registry) Get(name string) (models.Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[name]
	if !ok || !skill.Enabled {
		return models.Skill{}, false
	}
	return *skill, true
}

// List returns every loaded skill, enabled or not.
func (r *Registry) List() []models.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		out = append(out, *skill)
	}
	return out
}

// SetEnabled toggles a loaded skill's availability without a full reload.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	skill, ok := r.skills[name]
	if !ok {
		return fmt.Errorf("skill %q not loaded", name)
	}
	skill.Enabled = enabled
	return nil
}
