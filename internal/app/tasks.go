package app

import (
	"context"
	"fmt"
	"time"
)

// TaskType distinguishes backgrounded sub-agent runs from backgrounded
// shells; the execution backend needs the type to route a stop request.
type TaskType string

const (
	TaskTypeAgent TaskType = "agent"
	TaskTypeShell TaskType = "shell"
)

// BackgroundTask is a tool invocation that moved off the synchronous path.
// It outlives the owning stream's state: the stream can settle while the
// task keeps running.
type BackgroundTask struct {
	ID             string    `json:"id"`
	Type           TaskType  `json:"type"`
	ToolUseID      string    `json:"tool_use_id"`
	StartTime      time.Time `json:"start_time"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	Intent         string    `json:"intent,omitempty"`
}

// TaskStopper cancels a backgrounded execution in the backend. Stop must not
// return nil unless the execution is confirmed gone.
type TaskStopper interface {
	StopExecution(ctx context.Context, id string, taskType TaskType) error
}

// TaskRegistry tracks backgrounded tasks per session. It is owned by the
// dispatcher and only touched from its event loop, so it needs no locking.
type TaskRegistry struct {
	stopper TaskStopper
	tasks   map[string][]BackgroundTask // session id -> ordered tasks
}

func NewTaskRegistry(stopper TaskStopper) *TaskRegistry {
	return &TaskRegistry{
		stopper: stopper,
		tasks:   make(map[string][]BackgroundTask),
	}
}

// Tasks returns a copy of the session's task list in insertion order.
func (r *TaskRegistry) Tasks(sessionID string) []BackgroundTask {
	list := r.tasks[sessionID]
	if len(list) == 0 {
		return nil
	}
	out := make([]BackgroundTask, len(list))
	copy(out, list)
	return out
}

// Add registers a backgrounded task. Adding the same toolUseID twice is a
// no-op; backgrounded signals can repeat when a provider resends state.
func (r *TaskRegistry) Add(sessionID string, task BackgroundTask) {
	for _, existing := range r.tasks[sessionID] {
		if existing.ToolUseID == task.ToolUseID {
			return
		}
	}
	if task.StartTime.IsZero() {
		task.StartTime = time.Now()
	}
	r.tasks[sessionID] = append(r.tasks[sessionID], task)
}

// UpdateProgress records the latest elapsed time for a task.
func (r *TaskRegistry) UpdateProgress(sessionID, toolUseID string, elapsedSeconds float64) {
	list := r.tasks[sessionID]
	for i := range list {
		if list[i].ToolUseID == toolUseID {
			list[i].ElapsedSeconds = elapsedSeconds
			return
		}
	}
}

// Remove drops the task for a tool use id, typically on its tool_result.
func (r *TaskRegistry) Remove(sessionID, toolUseID string) {
	list := r.tasks[sessionID]
	for i := range list {
		if list[i].ToolUseID == toolUseID {
			r.tasks[sessionID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// RemoveByTaskOrShellID removes the task whose backend execution id matches.
// Terminal signals for backgrounded work carry the execution id, not the
// original tool use id, so the owning entry is resolved first.
func (r *TaskRegistry) RemoveByTaskOrShellID(sessionID, id string) {
	list := r.tasks[sessionID]
	for i := range list {
		if list[i].ID == id {
			r.tasks[sessionID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Clear drops every task for a session. Used during finalization teardown.
func (r *TaskRegistry) Clear(sessionID string) {
	delete(r.tasks, sessionID)
}

// Stop requests cancellation from the execution backend and removes the
// entry once the backend confirms. On failure the entry is kept and the
// error returned: a task is never reported gone while it may still run.
func (r *TaskRegistry) Stop(ctx context.Context, sessionID, id string, taskType TaskType) error {
	if r.stopper == nil {
		return fmt.Errorf("no task stopper configured")
	}
	if err := r.stopper.StopExecution(ctx, id, taskType); err != nil {
		return fmt.Errorf("stop %s task %s: %w", taskType, id, err)
	}
	r.RemoveByTaskOrShellID(sessionID, id)
	return nil
}
