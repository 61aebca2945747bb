package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nexuscore/agent/internal/hookbus"
	"github.com/nexuscore/agent/internal/telemetry"
)

func writeTestConfig(t *testing.T, profile string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
version: 1
agent:
  provider: claude
  model: claude-3-5-sonnet
memory:
  database_path: ":memory:"
tools:
  approval:
    profile: ` + profile + `
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBuildRuntimeReadOnlyProfileExcludesExecAndFileTools(t *testing.T) {
	rt, err := buildRuntime(writeTestConfig(t, "read_only"))
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	names := map[string]bool{}
	for _, def := range rt.toolDefinitions() {
		names[def.Name] = true
	}
	if names["exec"] {
		t.Fatal("read_only profile should not register the exec tool")
	}
	if names["read_file"] {
		t.Fatal("read_only profile should not register fs tools (fs is gated starting at standard)")
	}
	if !names["web_fetch"] {
		t.Fatal("read_only profile should register the web_fetch tool")
	}
}

func TestBuildRuntimeFullProfileRegistersEveryTool(t *testing.T) {
	rt, err := buildRuntime(writeTestConfig(t, "full"))
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	names := map[string]bool{}
	for _, def := range rt.toolDefinitions() {
		names[def.Name] = true
	}
	for _, want := range []string{"read_file", "write_file", "list_files", "exec", "web_fetch", "web_search", "x402_fetch", "x402_rpc", "local_burner_wallet", "evm_transaction", "invoke_skill"} {
		if !names[want] {
			t.Fatalf("full profile should register %q, got %v", want, names)
		}
	}
}

func TestLLMTracingHookClosesSpanAcrossIterationsAndOnCompletion(t *testing.T) {
	tracer, shutdown := telemetry.NewTracer(telemetry.Config{ServiceName: "test"})
	defer shutdown(context.Background())

	hook := newLLMTracingHook(tracer, "claude", "claude-3-5-sonnet")
	bus := hookbus.New()
	if err := hook.registerOn(bus); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	fire := func(name string) {
		t.Helper()
		if err := bus.Trigger(ctx, &hookbus.Event{Name: name, ChannelID: "chan-1"}); err != nil {
			t.Fatalf("trigger %s: %v", name, err)
		}
	}

	fire(hookbus.EventBeforeLLM)
	if len(hook.spans) != 1 {
		t.Fatalf("expected one open span after before_llm, got %d", len(hook.spans))
	}

	// a second before_llm (a tool-calling iteration) must close the first
	// iteration's span rather than leaking it.
	fire(hookbus.EventBeforeLLM)
	if len(hook.spans) != 1 {
		t.Fatalf("expected exactly one open span across iterations, got %d", len(hook.spans))
	}

	fire(hookbus.EventAfterLLM)
	if len(hook.spans) != 0 {
		t.Fatalf("expected after_llm to close the final span, got %d open", len(hook.spans))
	}
}
