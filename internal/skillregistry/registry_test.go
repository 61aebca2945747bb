package skillregistry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, dir, name, frontmatter, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "---\n" + frontmatter + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(skillDir, skillFilename), []byte(content), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}
}

func TestRegistryLoadWorkspaceOverridesBundled(t *testing.T) {
	bundled := t.TempDir()
	workspace := t.TempDir()

	writeSkill(t, bundled, "greeter", "name: greeter\ndescription: says hi", "Bundled prompt")
	writeSkill(t, workspace, "greeter", "name: greeter\ndescription: says hi (custom)", "Workspace prompt")

	reg := NewRegistry(bundled, "", workspace)
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	skill, ok := reg.Get("greeter")
	if !ok {
		t.Fatalf("expected greeter to be loaded")
	}
	if skill.PromptTemplate != "Workspace prompt" {
		t.Fatalf("expected workspace skill to win, got %q", skill.PromptTemplate)
	}
}

func TestRegistryLoadSkipsMissingRoots(t *testing.T) {
	reg := NewRegistry("/nonexistent/bundled", "", "")
	if err := reg.Load(); err != nil {
		t.Fatalf("expected missing root to be skipped, got %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatalf("expected no skills loaded")
	}
}

func TestRegistrySetEnabled(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "tool-x", "name: tool-x\ndescription: does x", "Prompt")

	reg := NewRegistry(dir, "", "")
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := reg.SetEnabled("tool-x", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if _, ok := reg.Get("tool-x"); ok {
		t.Fatalf("expected disabled skill to not be returned by Get")
	}

	if err := reg.SetEnabled("missing", true); err == nil {
		t.Fatalf("expected error toggling an unloaded skill")
	}
}

func TestRegistrySkipsMalformedSkill(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "broken")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, skillFilename), []byte("no frontmatter here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeSkill(t, dir, "good", "name: good\ndescription: fine", "Prompt")

	reg := NewRegistry(dir, "", "")
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := reg.Get("good"); !ok {
		t.Fatalf("expected the well-formed skill to load despite the broken sibling")
	}
}
