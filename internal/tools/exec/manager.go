// Package exec implements the shell-exec tool's sandbox: basename allow/deny
// lists, shell-metacharacter rejection, and direct binary invocation with no
// shell in the loop.
package exec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	execsafety "github.com/nexuscore/agent/internal/exec"
	"github.com/nexuscore/agent/internal/tools/files"
	"github.com/nexuscore/agent/pkg/apperrors"
)

func osEnviron() []string { return os.Environ() }

// defaultDenyList blocks shells, privilege-escalators, package managers,
// and destructive utilities.
var defaultDenyList = []string{
	"rm", "rmdir", "dd", "mkfs", "fdisk", "parted",
	"nc", "netcat", "nmap",
	"sudo", "su", "doas", "pkexec",
	"systemctl", "service", "init",
	"apt", "apt-get", "yum", "dnf", "pacman", "brew",
	"sh", "bash", "zsh", "fish", "csh", "tcsh",
	"chmod", "chown", "chgrp",
	"kill", "killall", "pkill",
	"crontab", "at",
	"eval", "exec", "source",
	"export", "unset", "env",
}

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 60 * time.Second
	maxOutputBytes = 50000
)

// Manager resolves, validates, and runs exec calls against a workspace.
type Manager struct {
	resolver  files.Resolver
	allowList []string
	denyList  []string
	maxOutput int
}

// NewManager creates a manager scoped to workspace using the default deny
// list and an empty allow list (deny-list-only mode).
func NewManager(workspace string) *Manager {
	return &Manager{
		resolver:  files.Resolver{Root: workspace},
		denyList:  defaultDenyList,
		maxOutput: maxOutputBytes,
	}
}

// ExecResult summarizes a synchronous exec call.
type ExecResult struct {
	Command    string        `json:"command"`
	Args       []string      `json:"args"`
	Cwd        string        `json:"working_dir"`
	Output     string        `json:"output"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration_ms"`
	Success    bool          `json:"success"`
	Truncated  bool          `json:"truncated"`
}

// isCommandAllowed checks the basename (not the full invocation string)
// against the allow/deny lists.
func (m *Manager) isCommandAllowed(command string) error {
	base := command
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}

	if len(m.allowList) > 0 {
		for _, a := range m.allowList {
			if a == base {
				return nil
			}
		}
		return apperrors.NewToolError(apperrors.ToolNotAllowed, "exec",
			fmt.Errorf("command %q is not in the allowed commands list", base))
	}

	for _, d := range m.denyList {
		if d == base {
			return apperrors.NewToolError(apperrors.ToolNotAllowed, "exec",
				fmt.Errorf("command %q is not allowed for security reasons (deny-list)", base))
		}
	}
	return nil
}

// Run executes command with args in workingDir (workspace-relative),
// enforcing the sandbox. The program path is resolved once via LookPath and
// invoked directly — never through a shell.
func (m *Manager) Run(ctx context.Context, command string, args []string, workingDir string, timeout time.Duration, env map[string]string) (*ExecResult, error) {
	if err := m.isCommandAllowed(command); err != nil {
		return nil, err
	}
	if !execsafety.IsSafeExecutableValue(command) {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "exec",
			fmt.Errorf("command contains shell metacharacters which are not allowed"))
	}
	if _, err := execsafety.SanitizeArguments(args); err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "exec", err)
	}
	// internal/exec's metacharacter set has no ( ) { } !; reject those here.
	for _, v := range append([]string{command}, args...) {
		if strings.ContainsAny(v, "(){}!") {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, "exec",
				fmt.Errorf("command or argument contains shell metacharacters which are not allowed"))
		}
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}

	dir := "."
	if workingDir != "" {
		dir = workingDir
	}
	resolvedDir, err := m.resolver.Resolve(dir)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolSandbox, "exec",
			fmt.Errorf("working directory must be within the workspace: %w", err))
	}

	resolvedPath, err := exec.LookPath(command)
	if err != nil {
		return nil, apperrors.NewToolError(apperrors.ToolInternal, "exec",
			fmt.Errorf("command %q not found", command))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, resolvedPath, args...)
	cmd.Dir = resolvedDir
	if len(env) > 0 {
		cmd.Env = append(osEnviron(), envSlice(env)...)
		if github, ok := env["__github_token__"]; ok && github != "" {
			cmd.Env = append(cmd.Env, "GH_TOKEN="+github, "GITHUB_TOKEN="+github)
		}
	}

	start := time.Now()
	out, runErr := cmd.CombinedOutput()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, apperrors.NewToolError(apperrors.ToolTimeout, "exec",
			fmt.Errorf("command timed out after %s", timeout))
	}

	exitCode := 0
	success := true
	if runErr != nil {
		success = false
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	output := string(out)
	truncated := false
	if len(output) > m.maxOutput {
		output = output[:m.maxOutput] + fmt.Sprintf("\n\n[output truncated at %d bytes]", m.maxOutput)
		truncated = true
	}

	return &ExecResult{
		Command:   command,
		Args:      args,
		Cwd:       resolvedDir,
		Output:    output,
		ExitCode:  exitCode,
		Duration:  duration,
		Success:   success,
		Truncated: truncated,
	}, nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		if k == "__github_token__" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}
