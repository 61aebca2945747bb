package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexuscore/agent/internal/config"
	"github.com/nexuscore/agent/internal/exectracker"
	"github.com/nexuscore/agent/internal/hookbus"
	"github.com/nexuscore/agent/internal/memorystore"
	"github.com/nexuscore/agent/internal/orchestrator"
	"github.com/nexuscore/agent/internal/providers"
	"github.com/nexuscore/agent/internal/skillregistry"
	"github.com/nexuscore/agent/internal/telemetry"
	"github.com/nexuscore/agent/internal/toolruntime"
	execTool "github.com/nexuscore/agent/internal/tools/exec"
	"github.com/nexuscore/agent/internal/tools/evm"
	"github.com/nexuscore/agent/internal/tools/files"
	"github.com/nexuscore/agent/internal/tools/websearch"
	"github.com/nexuscore/agent/pkg/models"
)

// runtime bundles everything buildRuntime assembles so chat/doctor can
// share construction and close the memory store when they're done.
type runtime struct {
	cfg             *config.Config
	orchestrator    *orchestrator.Orchestrator
	registry        *toolruntime.Registry
	memory          *memorystore.Store
	apiKeys         map[string]string
	shutdownTracing func(context.Context) error
	metricsServer   *http.Server
}

func (r *runtime) toolDefinitions() []models.ToolDefinition {
	return r.registry.Definitions()
}

func (r *runtime) Close() error {
	if r.metricsServer != nil {
		_ = r.metricsServer.Shutdown(context.Background())
	}
	if r.shutdownTracing != nil {
		_ = r.shutdownTracing(context.Background())
	}
	if r.memory != nil {
		return r.memory.Close()
	}
	return nil
}

// slogBroadcaster turns tracker/tool lifecycle events into structured log
// lines, standing in for a channel-facing event sink (out of scope per
// spec §1's "channel I/O plumbing").
type slogBroadcaster struct {
	logger *slog.Logger
}

func (b slogBroadcaster) Emit(name string, payload any) {
	b.logger.Debug("event", "name", name, "payload", payload)
}

// tracingBroadcaster turns the execution tracker's task.started/completed
// events into OpenTelemetry spans: one per tool dispatch, keyed by the
// task id the tracker assigns. It delegates everything else to next.
type tracingBroadcaster struct {
	next   orchestrator.Broadcaster
	tracer *telemetry.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func newTracingBroadcaster(next orchestrator.Broadcaster, tracer *telemetry.Tracer) *tracingBroadcaster {
	return &tracingBroadcaster{next: next, tracer: tracer, spans: make(map[string]trace.Span)}
}

// llmTracingHook spans one adapter call per channel via the hook bus's
// before_llm/after_llm events (pkg/models.Hook), rather than instrumenting
// providers.AgentClient directly, so the provider package stays untouched.
// At most one span is ever open per channel, matching the tracker's own
// one-active-execution-per-channel invariant.
type llmTracingHook struct {
	tracer   *telemetry.Tracer
	provider string
	model    string

	mu    sync.Mutex
	spans map[string]trace.Span
}

func newLLMTracingHook(tracer *telemetry.Tracer, provider, model string) *llmTracingHook {
	return &llmTracingHook{tracer: tracer, provider: provider, model: model, spans: make(map[string]trace.Span)}
}

func (h *llmTracingHook) registerOn(bus *hookbus.Bus) error {
	return bus.Register(models.Hook{
		ID:       "telemetry.llm",
		Name:     "llm tracing",
		Events:   []string{hookbus.EventBeforeLLM, hookbus.EventAfterLLM},
		Priority: models.HookPriorityLow,
		Enabled:  true,
	}, h.handle)
}

// handle opens a span per before_llm and closes it on the matching
// after_llm. after_llm only fires on the iteration that ends the loop (see
// orchestrator.Run), so an earlier iteration's span is closed out as soon as
// the next before_llm arrives rather than left open for the rest of the run.
func (h *llmTracingHook) handle(ctx context.Context, event *hookbus.Event) error {
	switch event.Name {
	case hookbus.EventBeforeLLM:
		h.endSpan(event.ChannelID)
		_, span := h.tracer.TraceLLMRequest(ctx, h.provider, h.model)
		h.mu.Lock()
		h.spans[event.ChannelID] = span
		h.mu.Unlock()
	case hookbus.EventAfterLLM:
		h.endSpan(event.ChannelID)
	}
	return nil
}

func (h *llmTracingHook) endSpan(channelID string) {
	h.mu.Lock()
	span, ok := h.spans[channelID]
	delete(h.spans, channelID)
	h.mu.Unlock()
	if ok {
		span.End()
	}
}

func (b *tracingBroadcaster) Emit(name string, payload any) {
	b.next.Emit(name, payload)

	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return
	}

	switch name {
	case "task.started":
		if fields["type"] != models.TaskTypeTool {
			return
		}
		description, _ := fields["description"].(string)
		_, span := b.tracer.TraceToolExecution(context.Background(), description)
		b.mu.Lock()
		b.spans[id] = span
		b.mu.Unlock()
	case "task.completed":
		b.mu.Lock()
		span, ok := b.spans[id]
		delete(b.spans, id)
		b.mu.Unlock()
		if !ok {
			return
		}
		if fields["status"] == models.TaskStatusError {
			b.tracer.RecordError(span, fmt.Errorf("task %s failed", id))
		}
		span.End()
	}
}

// buildRuntime loads the config, wires the agentic loop end to end (adapter
// client, policy-filtered tool registry, memory store, execution tracker,
// hook bus), and returns the ready-to-run orchestrator.
func buildRuntime(path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	workspaceDir, err := cfg.ResolveWorkspacePath()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	client := providers.NewAgentClient(cfg.Agent.Settings())

	registry, err := buildToolRegistry(cfg, workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	store, err := memorystore.Open(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	var embedder memorystore.Embedder
	if cfg.Memory.EmbeddingAPIKey != "" {
		e, err := memorystore.NewOpenAIEmbedder(cfg.Memory.EmbeddingAPIKey, cfg.Memory.EmbeddingBaseURL, cfg.Memory.EmbeddingModel)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build embedder: %w", err)
		}
		embedder = e
	}

	tracingCfg := telemetry.Config{ServiceName: cfg.Tracing.ServiceName}
	if cfg.Tracing.Enabled {
		tracingCfg.Environment = cfg.Tracing.Environment
		tracingCfg.Endpoint = cfg.Tracing.Endpoint
		tracingCfg.SamplingRate = cfg.Tracing.SamplingRate
		tracingCfg.Insecure = cfg.Tracing.Insecure
	}
	tracer, shutdownTracing := telemetry.NewTracer(tracingCfg)

	var broadcaster orchestrator.Broadcaster = newTracingBroadcaster(slogBroadcaster{logger: slog.Default()}, tracer)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registerer := prometheus.NewRegistry()
		metrics := exectracker.NewPrometheusMetrics(registerer)
		broadcaster = exectracker.NewMetricsBroadcaster(broadcaster, metrics)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Default().Error("metrics server stopped", "error", err)
			}
		}()
	}

	tracker := exectracker.New(broadcaster)
	bus := hookbus.New()
	llmTracing := newLLMTracingHook(tracer, cfg.Agent.Provider, cfg.Agent.Model)
	if err := llmTracing.registerOn(bus); err != nil {
		store.Close()
		return nil, fmt.Errorf("register llm tracing hook: %w", err)
	}

	loopCfg := orchestrator.LoopConfig{
		MaxIterations: cfg.Agent.MaxIterations,
		MemoryLimit:   cfg.Agent.MemoryLimit,
	}
	orch := orchestrator.New(client, registry, store, embedder, tracker, bus, broadcaster, loopCfg)

	apiKeys := map[string]string{
		"burner_wallet": cfg.Tools.X402.BurnerWalletKey,
	}

	return &runtime{
		cfg:             cfg,
		orchestrator:    orch,
		registry:        registry,
		memory:          store,
		apiKeys:         apiKeys,
		shutdownTracing: shutdownTracing,
		metricsServer:   metricsServer,
	}, nil
}

// buildToolRegistry registers every spec §4.2 tool whose group the
// approval profile/allow/deny lists admit, then layers the skill-invocation
// tool on top once the other tools are known (its availability gate checks
// against their names).
func buildToolRegistry(cfg *config.Config, workspaceDir string) (*toolruntime.Registry, error) {
	policy := toolruntime.ToolConfig{
		Profile:   toolruntime.Profile(cfg.Tools.Approval.Profile),
		AllowList: cfg.Tools.Approval.Allowlist,
		DenyList:  cfg.Tools.Approval.Denylist,
	}

	resolver := files.Resolver{Root: workspaceDir}
	candidates := []toolruntime.Tool{
		&files.ReadTool{Resolver: resolver},
		&files.WriteTool{Resolver: resolver},
		&files.ListTool{Resolver: resolver},
		&execTool.ExecTool{Manager: execTool.NewManager(workspaceDir)},
		websearch.NewWebFetchTool(),
		websearch.NewWebSearchTool(&websearch.Config{
			SearXNGURL:         cfg.Tools.WebSearch.SearXNGURL,
			BraveAPIKey:        cfg.Tools.WebSearch.BraveAPIKey,
			SerpAPIKey:         cfg.Tools.WebSearch.SerpAPIKey,
			DefaultBackend:     websearch.SearchBackend(cfg.Tools.WebSearch.Backend),
			ExtractContent:     true,
			DefaultResultCount: 5,
		}),
		&evm.X402FetchTool{},
		&evm.X402RPCTool{},
		&evm.WalletTool{},
		&evm.TxTool{},
	}

	registry := toolruntime.NewRegistry()
	available := make(map[string]bool, len(candidates))
	for _, tool := range candidates {
		def := tool.Definition()
		if !policy.Allowed(def.Name, def.Group) {
			continue
		}
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
		available[def.Name] = true
	}

	skills := skillregistry.NewRegistry(cfg.Skills.BundledDir, cfg.Skills.ManagedDir, cfg.Skills.WorkspaceDir)
	if err := skills.Load(); err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	invoke := &skillregistry.InvokeSkillTool{Registry: skills, AvailableTools: available}
	if def := invoke.Definition(); policy.Allowed(def.Name, def.Group) {
		if err := registry.Register(invoke); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
