package hookbus

import (
	"context"
	"errors"
	"testing"

	"github.com/nexuscore/agent/pkg/models"
)

func hook(id string, priority models.HookPriority, events ...string) models.Hook {
	return models.Hook{ID: id, Name: id, Events: events, Priority: priority, Enabled: true}
}

func TestTriggerOrdersByPriorityThenRegistration(t *testing.T) {
	b := New()
	var order []string

	record := func(id string) Handler {
		return func(ctx context.Context, event *Event) error {
			order = append(order, id)
			return nil
		}
	}

	if err := b.Register(hook("low", models.HookPriorityLow, EventBeforeLLM), record("low")); err != nil {
		t.Fatalf("register low: %v", err)
	}
	if err := b.Register(hook("high", models.HookPriorityHigh, EventBeforeLLM), record("high")); err != nil {
		t.Fatalf("register high: %v", err)
	}
	if err := b.Register(hook("normal-a", models.HookPriorityNormal, EventBeforeLLM), record("normal-a")); err != nil {
		t.Fatalf("register normal-a: %v", err)
	}
	if err := b.Register(hook("normal-b", models.HookPriorityNormal, EventBeforeLLM), record("normal-b")); err != nil {
		t.Fatalf("register normal-b: %v", err)
	}

	if err := b.Trigger(context.Background(), &Event{Name: EventBeforeLLM}); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	want := []string{"high", "normal-a", "normal-b", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("position %d: got %q want %q (full: %v)", i, order[i], w, order)
		}
	}
}

func TestTriggerStopsOnShortCircuit(t *testing.T) {
	b := New()
	var called []string

	shortCircuit := func(ctx context.Context, event *Event) error {
		called = append(called, "short")
		event.ShortCircuitReply = &models.AgentReply{Content: "canned"}
		return nil
	}
	never := func(ctx context.Context, event *Event) error {
		called = append(called, "never")
		return nil
	}

	_ = b.Register(hook("short", models.HookPriorityHigh, EventBeforeLLM), shortCircuit)
	_ = b.Register(hook("never", models.HookPriorityLow, EventBeforeLLM), never)

	event := &Event{Name: EventBeforeLLM}
	if err := b.Trigger(context.Background(), event); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(called) != 1 || called[0] != "short" {
		t.Fatalf("expected only the short-circuiting handler to run, got %v", called)
	}
	if event.ShortCircuitReply == nil || event.ShortCircuitReply.Content != "canned" {
		t.Fatalf("expected short-circuit reply to survive, got %+v", event.ShortCircuitReply)
	}
}

func TestTriggerPropagatesHandlerError(t *testing.T) {
	b := New()
	failing := func(ctx context.Context, event *Event) error { return errors.New("boom") }
	_ = b.Register(hook("failing", models.HookPriorityNormal, EventBeforeLLM), failing)

	event := &Event{Name: EventBeforeLLM}
	if err := b.Trigger(context.Background(), event); err == nil {
		t.Fatalf("expected handler error to propagate")
	}
	if event.Err == nil {
		t.Fatalf("expected event.Err to be set")
	}
}

func TestTriggerRecoversPanic(t *testing.T) {
	b := New()
	panicking := func(ctx context.Context, event *Event) error { panic("kaboom") }
	_ = b.Register(hook("panicking", models.HookPriorityNormal, EventBeforeLLM), panicking)

	err := b.Trigger(context.Background(), &Event{Name: EventBeforeLLM})
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
}

func TestDisabledHookDoesNotRun(t *testing.T) {
	b := New()
	called := false
	h := hook("disabled", models.HookPriorityHigh, EventBeforeLLM)
	h.Enabled = false
	_ = b.Register(h, func(ctx context.Context, event *Event) error {
		called = true
		return nil
	})

	if err := b.Trigger(context.Background(), &Event{Name: EventBeforeLLM}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if called {
		t.Fatalf("expected disabled hook to be skipped")
	}
}

func TestUnregisterRemovesHook(t *testing.T) {
	b := New()
	called := false
	_ = b.Register(hook("temp", models.HookPriorityNormal, EventBeforeLLM), func(ctx context.Context, event *Event) error {
		called = true
		return nil
	})
	b.Unregister("temp")

	if err := b.Trigger(context.Background(), &Event{Name: EventBeforeLLM}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if called {
		t.Fatalf("expected unregistered hook not to run")
	}
	if len(b.Registered(EventBeforeLLM)) != 0 {
		t.Fatalf("expected no hooks registered for event")
	}
}
