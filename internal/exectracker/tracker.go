// Package exectracker is the per-channel execution tracker from spec §4.4:
// a hierarchical task tree with monotonically increasing metrics, emitting
// progress events to a broadcaster as the agentic loop and tool runtime
// drive it.
package exectracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agent/pkg/models"
)

// Broadcaster is the event-emission surface the tracker drives; satisfied by
// toolruntime.Broadcaster, so tools and the tracker share one sink.
type Broadcaster interface {
	Emit(name string, payload any)
}

// NopBroadcaster discards every event; used where no sink is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) Emit(string, any) {}

// Tracker owns the task tree for every channel. Mutation is serialized by
// mu; emission happens while the lock is held since Broadcaster.Emit must
// never block (it drops on a full queue per §5) rather than suspend.
type Tracker struct {
	mu          sync.Mutex
	tasks       map[string]*models.ExecutionTask
	activeRoot  map[string]string // channel_id -> root execution task id
	broadcaster Broadcaster
}

func New(broadcaster Broadcaster) *Tracker {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &Tracker{
		tasks:       make(map[string]*models.ExecutionTask),
		activeRoot:  make(map[string]string),
		broadcaster: broadcaster,
	}
}

// ActiveExecution reports the running root execution id for channelID, if
// any, enforcing the §3 invariant that at most one execution is active per
// channel.
func (t *Tracker) ActiveExecution(channelID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.activeRoot[channelID]
	return id, ok
}

// CancelExecution clears channelID's active-execution marker without
// touching the task tree itself; the orchestrator calls this after it has
// set the prior run's cancellation flag and waited for it to exit its
// current turn boundary, per §4.5 step 1.
func (t *Tracker) CancelExecution(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.activeRoot, channelID)
}

// StartExecution creates the root task for a new execution on channelID.
// Fails if one is already active; the caller (the orchestrator) is
// responsible for cancelling a prior run first.
func (t *Tracker) StartExecution(channelID, mode string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, active := t.activeRoot[channelID]; active {
		return "", fmt.Errorf("exectracker: channel %q already has an active execution", channelID)
	}

	now := time.Now().UTC()
	id := newTaskID()
	task := &models.ExecutionTask{
		ID:          id,
		ChannelID:   channelID,
		Type:        models.TaskTypeExecution,
		Description: mode,
		Status:      models.TaskStatusRunning,
		StartedAt:   &now,
	}
	t.tasks[id] = task
	t.activeRoot[channelID] = id

	t.broadcaster.Emit("execution.started", executionEventPayload(task))
	t.broadcaster.Emit("task.started", taskEventPayload(task))
	return id, nil
}

// StartTask creates and starts a child task under parent (or a root-less
// orphan task if parent is empty, which should not happen in practice since
// every tool/subtask is created under an execution).
func (t *Tracker) StartTask(channelID string, parent *string, typ models.TaskType, description, activeForm string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	id := newTaskID()
	task := &models.ExecutionTask{
		ID:          id,
		ChannelID:   channelID,
		Type:        typ,
		Description: description,
		ActiveForm:  activeForm,
		Parent:      parent,
		Status:      models.TaskStatusRunning,
		StartedAt:   &now,
	}
	t.tasks[id] = task

	if parent != nil {
		parentTask, ok := t.tasks[*parent]
		if !ok {
			return "", fmt.Errorf("exectracker: parent task %q not found", *parent)
		}
		parentTask.Metrics.ChildCount++
	}

	t.broadcaster.Emit("task.started", taskEventPayload(task))
	return id, nil
}

// AddToTaskMetrics atomically increments toolUses/tokens/lines on id's
// metrics; the increments are monotonic per the §3 invariant.
func (t *Tracker) AddToTaskMetrics(id string, toolUses, tokens, lines int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return fmt.Errorf("exectracker: task %q not found", id)
	}
	task.Metrics.ToolUses += toolUses
	task.Metrics.TokensUsed += tokens
	task.Metrics.LinesRead += lines

	t.broadcaster.Emit("task.updated", taskEventPayload(task))
	return nil
}

// CompleteTask finalizes id as completed, recording its duration.
func (t *Tracker) CompleteTask(id string) error {
	return t.finalize(id, models.TaskStatusCompleted, "")
}

// CompleteTaskWithError finalizes id as errored.
func (t *Tracker) CompleteTaskWithError(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.finalize(id, models.TaskStatusError, msg)
}

func (t *Tracker) finalize(id string, status models.TaskStatus, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return fmt.Errorf("exectracker: task %q not found", id)
	}
	now := time.Now().UTC()
	task.EndedAt = &now
	task.Status = status
	task.Error = errMsg
	if task.StartedAt != nil {
		task.Metrics.DurationMS = now.Sub(*task.StartedAt).Milliseconds()
	}

	t.broadcaster.Emit("task.completed", taskEventPayload(task))
	return nil
}

// CompleteExecution aggregates tool_uses/tokens_used/lines_read across every
// non-root task recorded for channelID, finalizes the channel's active root,
// emits execution.completed, and then removes every task recorded for
// channelID from the tree.
func (t *Tracker) CompleteExecution(channelID string) (*models.TaskMetrics, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rootID, ok := t.activeRoot[channelID]
	if !ok {
		return nil, fmt.Errorf("exectracker: channel %q has no active execution", channelID)
	}
	root, ok := t.tasks[rootID]
	if !ok {
		return nil, fmt.Errorf("exectracker: root task %q not found", rootID)
	}

	aggregate := models.TaskMetrics{}
	var members []string
	for id, task := range t.tasks {
		if task.ChannelID != channelID {
			continue
		}
		members = append(members, id)
		if id == rootID {
			continue
		}
		aggregate.ToolUses += task.Metrics.ToolUses
		aggregate.TokensUsed += task.Metrics.TokensUsed
		aggregate.LinesRead += task.Metrics.LinesRead
	}

	now := time.Now().UTC()
	root.EndedAt = &now
	root.Status = models.TaskStatusCompleted
	root.Metrics.ToolUses = aggregate.ToolUses
	root.Metrics.TokensUsed = aggregate.TokensUsed
	root.Metrics.LinesRead = aggregate.LinesRead
	if root.StartedAt != nil {
		root.Metrics.DurationMS = now.Sub(*root.StartedAt).Milliseconds()
	}

	t.broadcaster.Emit("execution.completed", executionEventPayload(root))

	for _, id := range members {
		delete(t.tasks, id)
	}
	delete(t.activeRoot, channelID)

	final := root.Metrics
	return &final, nil
}

// Task returns a copy of a task's current state, for tests and diagnostics.
func (t *Tracker) Task(id string) (models.ExecutionTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return models.ExecutionTask{}, false
	}
	return *task, true
}

func newTaskID() string { return uuid.NewString() }

func taskEventPayload(task *models.ExecutionTask) map[string]any {
	return map[string]any{
		"id":          task.ID,
		"channel_id":  task.ChannelID,
		"type":        task.Type,
		"description": task.Description,
		"status":      task.Status,
		"metrics":     task.Metrics,
	}
}

func executionEventPayload(task *models.ExecutionTask) map[string]any {
	return taskEventPayload(task)
}
