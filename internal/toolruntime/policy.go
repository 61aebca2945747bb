package toolruntime

import "github.com/nexuscore/agent/pkg/models"

// Profile is the default allowed-groups preset for a ToolConfig.
type Profile string

const (
	ProfileReadOnly Profile = "read_only"
	ProfileStandard Profile = "standard"
	ProfileFull     Profile = "full"
	ProfileCustom   Profile = "custom"
)

// ToolConfig resolves which tool names are admitted for a call.
type ToolConfig struct {
	Profile   Profile
	AllowList []string
	DenyList  []string
}

// groupsForProfile returns the default allowed ToolGroup set for a profile.
// ReadOnly: web. Standard: + fs. Full: + exec, system. models.ToolGroupFS
// covers read_file, list_files and write_file alike, so ReadOnly admits no
// fs tool at all, including the read-only ones; the whole fs group is
// admitted starting at Standard.
func groupsForProfile(p Profile) map[models.ToolGroup]bool {
	switch p {
	case ProfileReadOnly:
		return map[models.ToolGroup]bool{models.ToolGroupWeb: true}
	case ProfileStandard:
		return map[models.ToolGroup]bool{models.ToolGroupWeb: true, models.ToolGroupFS: true}
	case ProfileFull:
		return map[models.ToolGroup]bool{
			models.ToolGroupWeb:    true,
			models.ToolGroupFS:     true,
			models.ToolGroupExec:   true,
			models.ToolGroupSystem: true,
		}
	default:
		return map[models.ToolGroup]bool{}
	}
}

// Allowed resolves cfg against a tool's name and group: profile establishes
// the default allowed groups, allow_list (if non-empty) narrows to an exact
// whitelist regardless of profile, and deny_list rejects by name last.
func (cfg ToolConfig) Allowed(name string, group models.ToolGroup) bool {
	for _, d := range cfg.DenyList {
		if d == name {
			return false
		}
	}

	if len(cfg.AllowList) > 0 {
		for _, a := range cfg.AllowList {
			if a == name {
				return true
			}
		}
		return false
	}

	if cfg.Profile == ProfileCustom {
		return false
	}
	return groupsForProfile(cfg.Profile)[group]
}

// Filter returns the subset of defs admitted by cfg.
func Filter(cfg ToolConfig, defs []models.ToolDefinition) []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if cfg.Allowed(d.Name, d.Group) {
			out = append(out, d)
		}
	}
	return out
}
