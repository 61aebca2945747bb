// Package hookbus is the ordered, priority-sorted hook bus from spec §2.8:
// named lifecycle events the orchestrator fires at each loop boundary, with
// handlers that can rewrite context, short-circuit with a canned reply, or
// set an error.
package hookbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexuscore/agent/pkg/models"
)

// Lifecycle events the orchestrator fires, per §4.5.
const (
	EventBeforeLLM      = "before_llm"
	EventAfterLLM       = "after_llm"
	EventBeforeToolCall = "before_tool_call"
	EventAfterToolCall  = "after_tool_call"
)

// Event carries the mutable turn state a handler may rewrite. The
// orchestrator re-reads History/ToolCall/ToolResult after Trigger returns,
// so a handler enriches context by mutating the pointer fields in place.
type Event struct {
	Name      string
	ChannelID string
	SessionID string

	History  []models.Message
	ToolCall *models.ToolCall
	ToolResult *models.ToolResult

	// ShortCircuitReply, if set by a BeforeLlm/AfterLlm handler, tells the
	// orchestrator to skip the remaining iteration and return this reply.
	ShortCircuitReply *models.AgentReply

	// Err, if set by any handler, aborts the current loop with
	// apperrors.OrchestratorHookAborted.
	Err error
}

// Handler reacts to an Event. Returning an error is equivalent to setting
// Event.Err and is the preferred way for a handler to abort a turn.
type Handler func(ctx context.Context, event *Event) error

type registration struct {
	hook     models.Hook
	handler  Handler
	sequence int // registration order, for a stable tie-break within a priority
}

// Bus dispatches events to handlers subscribed to them, in
// priority-descending, then registration order, per §5's ordering guarantee.
type Bus struct {
	mu       sync.RWMutex
	byEvent  map[string][]*registration
	byID     map[string]*registration
	sequence int
}

func New() *Bus {
	return &Bus{
		byEvent: make(map[string][]*registration),
		byID:    make(map[string]*registration),
	}
}

// Register subscribes handler to every event named in hook.Events. hook.ID
// must be unique; re-registering the same id replaces its prior handler and
// re-sorts affected event lists.
func (b *Bus) Register(hook models.Hook, handler Handler) error {
	if hook.ID == "" {
		return fmt.Errorf("hookbus: hook id must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("hookbus: hook %q: handler must not be nil", hook.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.byID[hook.ID]; ok {
		b.removeLocked(existing)
	}

	b.sequence++
	reg := &registration{hook: hook, handler: handler, sequence: b.sequence}
	b.byID[hook.ID] = reg

	for _, event := range hook.Events {
		b.byEvent[event] = append(b.byEvent[event], reg)
		b.sortLocked(event)
	}
	return nil
}

// Unregister removes a hook by id from every event it was subscribed to.
func (b *Bus) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.byID[id]
	if !ok {
		return
	}
	b.removeLocked(reg)
	delete(b.byID, id)
}

func (b *Bus) removeLocked(reg *registration) {
	for _, event := range reg.hook.Events {
		handlers := b.byEvent[event]
		for i, r := range handlers {
			if r == reg {
				b.byEvent[event] = append(handlers[:i], handlers[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) sortLocked(event string) {
	handlers := b.byEvent[event]
	sort.SliceStable(handlers, func(i, j int) bool {
		if handlers[i].hook.Priority.Rank() != handlers[j].hook.Priority.Rank() {
			return handlers[i].hook.Priority.Rank() > handlers[j].hook.Priority.Rank()
		}
		return handlers[i].sequence < handlers[j].sequence
	})
}

// Trigger calls every enabled handler subscribed to event.Name, in order,
// until one sets event.Err or event.ShortCircuitReply, or the list is
// exhausted. A panicking handler is recovered and turned into event.Err,
// matching the rest of the handler chain's abort semantics.
func (b *Bus) Trigger(ctx context.Context, event *Event) error {
	b.mu.RLock()
	handlers := make([]*registration, len(b.byEvent[event.Name]))
	copy(handlers, b.byEvent[event.Name])
	b.mu.RUnlock()

	for _, reg := range handlers {
		if !reg.hook.Enabled {
			continue
		}
		if err := callHandler(ctx, reg, event); err != nil {
			event.Err = err
			return err
		}
		if event.Err != nil {
			return event.Err
		}
		if event.ShortCircuitReply != nil {
			return nil
		}
	}
	return nil
}

func callHandler(ctx context.Context, reg *registration, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hookbus: hook %q panicked: %v", reg.hook.ID, r)
		}
	}()
	return reg.handler(ctx, event)
}

// Registered reports the hooks currently subscribed to event, in dispatch
// order, for diagnostics.
func (b *Bus) Registered(event string) []models.Hook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := b.byEvent[event]
	out := make([]models.Hook, len(handlers))
	for i, r := range handlers {
		out[i] = r.hook
	}
	return out
}
