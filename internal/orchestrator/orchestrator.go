// Package orchestrator drives the agentic loop from spec §4.5: prompt →
// adapter → maybe tool calls → hooks → tool execution → loop. It owns
// per-channel cancellation, the iteration cap, and wires the provider
// adapters, tool runtime, memory store, execution tracker and hook bus into
// one request/response cycle.
//
// State machine per request, matching the teacher's loop.go shape:
//
//	Acquire slot -> Assemble prompt -> BeforeLlm -> Generate
//	    -> no tool_calls? -> AfterLlm -> done
//	    -> tool_calls: BeforeToolCall -> Execute -> AfterToolCall -> loop
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexuscore/agent/internal/exectracker"
	"github.com/nexuscore/agent/internal/hookbus"
	"github.com/nexuscore/agent/internal/memorystore"
	"github.com/nexuscore/agent/internal/providers"
	"github.com/nexuscore/agent/internal/toolruntime"
	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// LoopConfig bounds one orchestrator run. Zero/negative fields are replaced
// by their default in sanitizeLoopConfig, mirroring the teacher's
// sanitizeLoopConfig pattern for LoopConfig.
type LoopConfig struct {
	MaxIterations int
	MemoryLimit   int
	SlotWait      time.Duration
}

const (
	defaultMaxIterations = 10
	defaultMemoryLimit   = 5
	defaultSlotWait      = 200 * time.Millisecond
)

func sanitizeLoopConfig(c LoopConfig) LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = defaultMemoryLimit
	}
	if c.SlotWait <= 0 {
		c.SlotWait = defaultSlotWait
	}
	return c
}

// Request is one inbound turn for a channel/session.
type Request struct {
	ChannelID    string
	SessionID    string
	IdentityID   string
	SystemPrompt string
	History      []models.Message
	UserMessage  string
	WorkspaceDir string
	APIKeys      map[string]string
}

// Broadcaster is the shared event sink passed to both the execution tracker
// and every tool invocation, so tool-emitted events (tx.pending, ...) and
// tracker-emitted events (task.started, ...) flow through one queue.
type Broadcaster interface {
	Emit(name string, payload any)
}

// llmClient is the narrow surface the loop needs from *providers.AgentClient;
// declared here, not in providers, so tests can substitute a fake without
// standing up a real adapter/HTTP round trip.
type llmClient interface {
	GenerateWithTools(ctx context.Context, req *providers.AgentTurn) (*models.AgentReply, error)
}

// Orchestrator ties together the adapter client, tool registry, memory
// store, execution tracker and hook bus for one agent deployment.
type Orchestrator struct {
	client      llmClient
	tools       *toolruntime.Registry
	memory      *memorystore.Store
	embedder    memorystore.Embedder
	tracker     *exectracker.Tracker
	hooks       *hookbus.Bus
	broadcaster Broadcaster
	config      LoopConfig

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func New(client *providers.AgentClient, tools *toolruntime.Registry, memory *memorystore.Store, embedder memorystore.Embedder, tracker *exectracker.Tracker, hooks *hookbus.Bus, broadcaster Broadcaster, config LoopConfig) *Orchestrator {
	return newWithClient(client, tools, memory, embedder, tracker, hooks, broadcaster, config)
}

func newWithClient(client llmClient, tools *toolruntime.Registry, memory *memorystore.Store, embedder memorystore.Embedder, tracker *exectracker.Tracker, hooks *hookbus.Bus, broadcaster Broadcaster, config LoopConfig) *Orchestrator {
	return &Orchestrator{
		client:      client,
		tools:       tools,
		memory:      memory,
		embedder:    embedder,
		tracker:     tracker,
		hooks:       hooks,
		broadcaster: broadcaster,
		config:      sanitizeLoopConfig(config),
		active:      make(map[string]*activeRun),
	}
}

// Run executes one full agentic turn for req, returning the final reply or
// an OrchestratorError/ProviderError/ToolError{Sandbox}.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.AgentReply, error) {
	runCtx, release := o.acquireSlot(ctx, req.ChannelID)
	defer release()

	rootID, err := o.tracker.StartExecution(req.ChannelID, "chat")
	if err != nil {
		return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorCancelled, err)
	}

	reply, runErr := o.runLoop(runCtx, req, rootID)

	if _, completeErr := o.tracker.CompleteExecution(req.ChannelID); completeErr != nil {
		// The execution may already have been torn down by a cancelling
		// successor; that is not itself a failure of this run.
		_ = completeErr
	}

	return reply, runErr
}

// acquireSlot enforces the §3 invariant that at most one execution runs per
// channel: a prior run is cancelled and given SlotWait to observe it before
// this request proceeds, per §4.5 step 1.
func (o *Orchestrator) acquireSlot(parent context.Context, channelID string) (context.Context, func()) {
	o.mu.Lock()
	if prior, ok := o.active[channelID]; ok {
		prior.cancel()
		o.mu.Unlock()
		select {
		case <-prior.done:
		case <-time.After(o.config.SlotWait):
		}
		o.tracker.CancelExecution(channelID)
		o.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(parent)
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	o.active[channelID] = run
	o.mu.Unlock()

	release := func() {
		cancel()
		close(run.done)
		o.mu.Lock()
		if o.active[channelID] == run {
			delete(o.active, channelID)
		}
		o.mu.Unlock()
	}
	return runCtx, release
}

func (o *Orchestrator) runLoop(ctx context.Context, req Request, rootID string) (*models.AgentReply, error) {
	history := append([]models.Message{}, req.History...)
	if req.UserMessage != "" {
		history = append(history, models.Message{Role: models.RoleUser, Content: req.UserMessage})
	}

	system := o.assembleSystemPrompt(ctx, req)
	var toolTurns []providers.TurnBlock
	toolDefs := o.tools.Definitions()

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			return o.cancelledReply(req.ChannelID), nil
		}

		beforeLLM := &hookbus.Event{Name: hookbus.EventBeforeLLM, ChannelID: req.ChannelID, SessionID: req.SessionID, History: history}
		if err := o.hooks.Trigger(ctx, beforeLLM); err != nil {
			return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorHookAborted, err)
		}
		if beforeLLM.ShortCircuitReply != nil {
			return beforeLLM.ShortCircuitReply, nil
		}
		history = beforeLLM.History

		reply, err := o.client.GenerateWithTools(ctx, &providers.AgentTurn{
			System:    system,
			History:   history,
			ToolTurns: toolTurns,
			Tools:     toolDefs,
		})
		if err != nil {
			return nil, err
		}

		if len(reply.ToolCalls) == 0 {
			afterLLM := &hookbus.Event{Name: hookbus.EventAfterLLM, ChannelID: req.ChannelID, SessionID: req.SessionID, History: history}
			if err := o.hooks.Trigger(ctx, afterLLM); err != nil {
				return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorHookAborted, err)
			}
			if afterLLM.ShortCircuitReply != nil {
				return afterLLM.ShortCircuitReply, nil
			}
			return reply, nil
		}

		assistantUses := append([]models.ToolCall{}, reply.ToolCalls...)
		responses := make([]models.ToolResponse, 0, len(reply.ToolCalls))

		for _, call := range reply.ToolCalls {
			if ctx.Err() != nil {
				return o.cancelledReply(req.ChannelID), nil
			}

			resp, fatalErr := o.executeToolCall(ctx, req, rootID, call)
			if fatalErr != nil {
				return nil, fatalErr
			}
			responses = append(responses, *resp)
		}

		toolTurns = append(toolTurns,
			providers.TurnBlock{AssistantToolUses: assistantUses},
			providers.TurnBlock{UserToolResults: responses},
		)

		if iteration >= o.config.MaxIterations {
			return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorIterationBudget, fmt.Errorf("exceeded %d iterations", o.config.MaxIterations))
		}
	}
}

// executeToolCall runs BeforeToolCall/AfterToolCall around one tool
// dispatch, recording a ToolResponse that is fed back to the model — except
// a ToolError{Sandbox}, which aborts the whole run per §7's propagation
// policy.
func (o *Orchestrator) executeToolCall(ctx context.Context, req Request, rootID string, call models.ToolCall) (*models.ToolResponse, error) {
	before := &hookbus.Event{Name: hookbus.EventBeforeToolCall, ChannelID: req.ChannelID, SessionID: req.SessionID, ToolCall: &call}
	if err := o.hooks.Trigger(ctx, before); err != nil {
		return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorHookAborted, err)
	}
	call = *before.ToolCall

	taskID, err := o.tracker.StartTask(req.ChannelID, &rootID, models.TaskTypeTool, call.Name, "Running "+call.Name)
	if err != nil {
		return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorCancelled, err)
	}

	tc := toolruntime.ToolContext{
		Ctx:          ctx,
		WorkspaceDir: req.WorkspaceDir,
		ChannelID:    req.ChannelID,
		SessionID:    req.SessionID,
		APIKeys:      req.APIKeys,
		Broadcaster:  o.broadcaster,
	}

	result, execErr := o.tools.Execute(tc, call.Name, call.Arguments)

	if execErr != nil {
		if toolErr, ok := execErr.(*apperrors.ToolError); ok && toolErr.Fatal() {
			_ = o.tracker.CompleteTaskWithError(taskID, execErr)
			return nil, toolErr
		}
		_ = o.tracker.CompleteTaskWithError(taskID, execErr)
		resp := &models.ToolResponse{ToolCallID: call.ID, Content: execErr.Error(), IsError: true}
		return o.afterToolCall(ctx, req, call, resp)
	}

	_ = o.tracker.AddToTaskMetrics(taskID, 1, 0, 0)
	_ = o.tracker.CompleteTask(taskID)

	resp := &models.ToolResponse{ToolCallID: call.ID, Content: result.Content, IsError: !result.Success}
	if !result.Success && resp.Content == "" {
		resp.Content = result.Error
	}
	return o.afterToolCall(ctx, req, call, resp)
}

func (o *Orchestrator) afterToolCall(ctx context.Context, req Request, call models.ToolCall, resp *models.ToolResponse) (*models.ToolResponse, error) {
	after := &hookbus.Event{Name: hookbus.EventAfterToolCall, ChannelID: req.ChannelID, SessionID: req.SessionID, ToolCall: &call, ToolResult: &models.ToolResult{Success: !resp.IsError, Content: resp.Content}}
	if err := o.hooks.Trigger(ctx, after); err != nil {
		return nil, apperrors.NewOrchestratorError(apperrors.OrchestratorHookAborted, err)
	}
	return resp, nil
}

// assembleSystemPrompt appends hybrid-search memories to the base system
// prompt, per §4.5 step 2. A retrieval failure degrades silently: the system
// prompt is returned unchanged, matching §7's "retrieval silently degrades"
// policy.
func (o *Orchestrator) assembleSystemPrompt(ctx context.Context, req Request) string {
	if o.memory == nil || req.UserMessage == "" {
		return req.SystemPrompt
	}
	filters := models.MemorySearchFilters{IdentityID: req.IdentityID, SessionID: req.SessionID}
	results, err := o.memory.HybridSearch(ctx, req.UserMessage, filters, o.config.MemoryLimit, o.embedder)
	if err != nil || len(results) == 0 {
		return req.SystemPrompt
	}

	prompt := req.SystemPrompt + "\n\nRelevant memories:\n"
	for _, r := range results {
		prompt += "- " + r.Memory.Content + "\n"
	}
	return prompt
}

func (o *Orchestrator) cancelledReply(channelID string) *models.AgentReply {
	o.tracker.CancelExecution(channelID)
	return &models.AgentReply{StopReason: models.StopReasonCancelled}
}
