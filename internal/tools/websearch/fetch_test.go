package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nexuscore/agent/internal/toolruntime"
)

func testContext() toolruntime.ToolContext {
	return toolruntime.ToolContext{Ctx: context.Background()}
}

func TestWebFetchTool_Success(t *testing.T) {
	htmlContent := `
<!DOCTYPE html>
<html>
<head><title>Fetch Test</title></head>
<body><main><p>Hello from fetch.</p></main></body>
</html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	tool := &WebFetchTool{extractor: NewContentExtractorForTesting()}
	params := map[string]interface{}{
		"url":          server.URL,
		"extract_text": true,
	}
	raw, _ := json.Marshal(params)
	result, err := tool.Execute(testContext(), raw)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if !strings.Contains(result.Content, "Hello from fetch") {
		t.Fatalf("expected content to include fetched text, got: %q", result.Content)
	}
}

func TestWebFetchTool_Truncates(t *testing.T) {
	builder := strings.Repeat("A", 200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + builder + "</body></html>"))
	}))
	defer server.Close()

	tool := &WebFetchTool{extractor: NewContentExtractorForTesting()}
	params := map[string]interface{}{
		"url":          server.URL,
		"extract_text": true,
		"max_length":   50,
	}
	raw, _ := json.Marshal(params)
	result, err := tool.Execute(testContext(), raw)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if len(result.Content) > 50 {
		t.Fatalf("expected content to be truncated, got len=%d", len(result.Content))
	}
}

func TestWebFetchTool_SSRFBlocked(t *testing.T) {
	tool := NewWebFetchTool()
	params := map[string]interface{}{
		"url": "http://localhost:1234",
	}
	raw, _ := json.Marshal(params)
	result, err := tool.Execute(testContext(), raw)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected SSRF error, got success: %s", result.Content)
	}
	if !strings.Contains(result.Error, "URL validation failed") {
		t.Fatalf("expected URL validation error, got: %s", result.Error)
	}
}

func TestWebFetchTool_RejectsNonHTTP(t *testing.T) {
	tool := NewWebFetchTool()
	params := map[string]interface{}{"url": "ftp://example.com/file"}
	raw, _ := json.Marshal(params)
	_, err := tool.Execute(testContext(), raw)
	if err == nil {
		t.Fatal("expected an invalid_args tool error for a non-http(s) URL")
	}
}
