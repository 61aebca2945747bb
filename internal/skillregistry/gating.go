package skillregistry

import (
	"fmt"
	"os/exec"

	"github.com/nexuscore/agent/pkg/models"
)

// checkRequirements verifies a skill's requires_tools/requires_binaries
// gates before it can be invoked. availableTools is the set of tool names
// registered in the running toolruntime.Registry.
func checkRequirements(skill models.Skill, availableTools map[string]bool) error {
	for _, tool := range skill.Metadata.RequiresTools {
		if !availableTools[tool] {
			return fmt.Errorf("requires tool %q, which is not registered", tool)
		}
	}
	for _, bin := range skill.Metadata.RequiresBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("requires binary %q, not found on PATH", bin)
		}
	}
	return nil
}
