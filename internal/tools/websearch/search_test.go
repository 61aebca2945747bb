package websearch

import (
	"encoding/json"
	"testing"
)

func TestWebSearchTool_Definition(t *testing.T) {
	tool := NewWebSearchTool(&Config{})
	def := tool.Definition()
	if def.Name != "web_search" {
		t.Errorf("expected name 'web_search', got '%s'", def.Name)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(def.InputSchema, &schemaMap); err != nil {
		t.Fatalf("failed to unmarshal schema: %v", err)
	}
	props, ok := schemaMap["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("schema should have properties")
	}
	if _, ok := props["query"]; !ok {
		t.Error("schema should have query property")
	}
}

func TestWebSearchTool_Execute_MissingQuery(t *testing.T) {
	tool := NewWebSearchTool(&Config{})
	_, err := tool.Execute(testContext(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an invalid_args tool error for a missing query")
	}
}

func TestWebSearchTool_Execute_NoBackendConfigured(t *testing.T) {
	tool := NewWebSearchTool(&Config{})
	_, err := tool.Execute(testContext(), json.RawMessage(`{"query":"test"}`))
	if err == nil {
		t.Fatal("expected an invalid_args tool error when no brave/serpapi key is present")
	}
}

func TestWebSearchTool_BackendSelection_PrefersBrave(t *testing.T) {
	tool := NewWebSearchTool(&Config{BraveAPIKey: "brave-key", SerpAPIKey: "serp-key"})
	// Seed the cache under the Brave key for these parameters: Execute answers
	// from it, without a network call, only if it picked Brave over SerpAPI.
	key := tool.getCacheKey(&SearchParams{Query: "test", Backend: BackendBraveSearch, Type: SearchTypeWeb, ResultCount: 1})
	tool.putInCache(key, &SearchResponse{Query: "test", Type: SearchTypeWeb, Backend: BackendBraveSearch})
	result, err := tool.Execute(testContext(), json.RawMessage(`{"query":"test","result_count":1}`))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected the Brave cache entry to be used, got error: %s", result.Error)
	}
}

func TestWebSearchTool_Caching(t *testing.T) {
	tool := NewWebSearchTool(&Config{})
	response := &SearchResponse{
		Query:       "cached query",
		Type:        SearchTypeWeb,
		Backend:     BackendBraveSearch,
		Results:     []SearchResult{{Title: "Cached", URL: "https://example.com"}},
		ResultCount: 1,
	}
	params := &SearchParams{Query: "cached query", Type: SearchTypeWeb, Backend: BackendBraveSearch, ResultCount: 1}
	key := tool.getCacheKey(params)

	tool.putInCache(key, response)
	cached := tool.getFromCache(key)
	if cached == nil {
		t.Fatal("expected a cache hit")
	}
	if cached.Query != "cached query" {
		t.Errorf("expected cached query to round-trip, got %q", cached.Query)
	}
}

func TestWebSearchTool_FormatResponse(t *testing.T) {
	tool := NewWebSearchTool(&Config{})
	response := &SearchResponse{
		Query:   "test",
		Type:    SearchTypeWeb,
		Backend: BackendSerpAPI,
		Results: []SearchResult{
			{Title: "Result One", URL: "https://example.com/1", Snippet: "first"},
			{Title: "Result Two", URL: "https://example.com/2", Snippet: "second"},
		},
		ResultCount: 2,
	}
	result := tool.formatResponse(response)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Metadata == nil {
		t.Fatal("expected metadata to carry the structured response")
	}
}

func TestSearchParams_ResultCountClamp(t *testing.T) {
	tool := NewWebSearchTool(&Config{BraveAPIKey: "k"})
	// Seed the cache under a result count of 10: Execute answers from it,
	// without a network call, only if it clamped the requested 50 to 10.
	key := tool.getCacheKey(&SearchParams{Query: "q", Backend: BackendBraveSearch, Type: SearchTypeWeb, ResultCount: 10})
	tool.putInCache(key, &SearchResponse{Query: "q", Type: SearchTypeWeb, Backend: BackendBraveSearch})
	raw, _ := json.Marshal(SearchParams{Query: "q", ResultCount: 50})
	result, err := tool.Execute(testContext(), raw)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected the cache entry for 10 results to be used, got error: %s", result.Error)
	}
}
