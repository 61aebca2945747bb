package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexuscore/agent/internal/toolruntime"
)

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	_, err := resolver.Resolve("../outside.txt")
	if err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestResolverAcceptsNestedPath(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	resolved, err := resolver.Resolve("sub/dir/file.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := filepath.Join(root, "sub", "dir", "file.txt")
	if resolved != want {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	writeTool := &WriteTool{Resolver: resolver}
	readTool := &ReadTool{Resolver: resolver}
	tc := toolruntime.ToolContext{Ctx: context.Background()}

	writeParams, _ := json.Marshal(map[string]interface{}{
		"path":    "notes.txt",
		"content": "hello world\nsecond line\n",
	})
	result, err := writeTool.Execute(tc, writeParams)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected write success, got %+v", result)
	}

	readParams, _ := json.Marshal(map[string]interface{}{"path": "notes.txt"})
	readResult, err := readTool.Execute(tc, readParams)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(readResult.Content, "hello world") {
		t.Fatalf("expected content, got %s", readResult.Content)
	}
	if !strings.Contains(readResult.Content, "     2\tsecond line") {
		t.Fatalf("expected 1-based line numbering, got %s", readResult.Content)
	}
}

func TestWriteAppend(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	writeTool := &WriteTool{Resolver: resolver}
	tc := toolruntime.ToolContext{Ctx: context.Background()}

	first, _ := json.Marshal(map[string]interface{}{"path": "log.txt", "content": "a\n"})
	if _, err := writeTool.Execute(tc, first); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	second, _ := json.Marshal(map[string]interface{}{"path": "log.txt", "content": "b\n", "append": true})
	if _, err := writeTool.Execute(tc, second); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "log.txt"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("unexpected content: %s", string(data))
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	listTool := &ListTool{Resolver: Resolver{Root: root}}
	tc := toolruntime.ToolContext{Ctx: context.Background()}
	params, _ := json.Marshal(map[string]interface{}{"path": "."})
	result, err := listTool.Execute(tc, params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var entries []listEntry
	if err := json.Unmarshal([]byte(result.Content), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestReadRejectsEscapedPath(t *testing.T) {
	root := t.TempDir()
	readTool := &ReadTool{Resolver: Resolver{Root: root}}
	tc := toolruntime.ToolContext{Ctx: context.Background()}
	params, _ := json.Marshal(map[string]interface{}{"path": "../outside.txt"})
	if _, err := readTool.Execute(tc, params); err == nil {
		t.Fatalf("expected sandbox error for escaped path")
	}
}
