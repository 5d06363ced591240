package app

import (
	"context"
	"sync"
	"time"
)

// Dispatcher is the always-on coordinator for session events. One goroutine
// (Run) drains the event channel, so reducer and registry operations execute
// strictly one at a time in arrival order, across all sessions. The
// dispatcher exclusively owns the session-state map, the visible message
// lists, the per-session queues, and the task registry; everything exported
// for readers returns copies guarded by the snapshot lock.
type Dispatcher struct {
	store    SessionStore
	tasks    *TaskRegistry
	notifier Notifier
	logger   *Logger

	notificationsEnabled bool

	events chan SessionEvent
	calls  chan func()

	// snapshot lock: the run loop writes, readers copy out.
	mu          sync.RWMutex
	states      map[string]SessionStreamState
	messages    map[string][]StoredMessage
	permissions map[string][]PermissionRequest
	asks        map[string][]AskUserRequest
	suggestions map[string][]string

	onChange func(sessionID string)
}

type DispatcherOptions struct {
	Store         SessionStore
	Stopper       TaskStopper
	Notifier      Notifier
	Logger        *Logger
	Notifications bool
	// OnChange is invoked after a session's visible state changed. Called
	// from the run loop; implementations must not call back into the
	// dispatcher synchronously.
	OnChange func(sessionID string)
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		store:                opts.Store,
		tasks:                NewTaskRegistry(opts.Stopper),
		notifier:             opts.Notifier,
		logger:               opts.Logger,
		notificationsEnabled: opts.Notifications,
		events:               make(chan SessionEvent, 256),
		calls:                make(chan func(), 16),
		states:               make(map[string]SessionStreamState),
		messages:             make(map[string][]StoredMessage),
		permissions:          make(map[string][]PermissionRequest),
		asks:                 make(map[string][]AskUserRequest),
		suggestions:          make(map[string][]string),
		onChange:             opts.OnChange,
	}
}

// Run drains events until ctx is cancelled. Exactly one Run per dispatcher.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.handle(ctx, ev)
		case fn := <-d.calls:
			fn()
		}
	}
}

// Dispatch queues one decoded event for processing.
func (d *Dispatcher) Dispatch(ev SessionEvent) {
	d.events <- ev
}

// call runs fn on the event loop and waits for it, giving external callers a
// slot in the global event order.
func (d *Dispatcher) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case d.calls <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev SessionEvent) {
	if ev.SessionID == "" {
		return
	}

	switch ev.Kind {
	case EventPermissionRequest:
		if ev.Permission != nil {
			d.mu.Lock()
			req := *ev.Permission
			if req.CreatedAt.IsZero() {
				req.CreatedAt = time.Now()
			}
			d.permissions[ev.SessionID] = append(d.permissions[ev.SessionID], req)
			d.mu.Unlock()
			d.changed(ev.SessionID)
		}
		return
	case EventAskUser:
		if ev.Ask != nil {
			d.mu.Lock()
			req := *ev.Ask
			if req.CreatedAt.IsZero() {
				req.CreatedAt = time.Now()
			}
			d.asks[ev.SessionID] = append(d.asks[ev.SessionID], req)
			d.mu.Unlock()
			d.changed(ev.SessionID)
		}
		return
	case EventPromptSuggestion:
		if ev.Suggestion != "" {
			d.mu.Lock()
			d.suggestions[ev.SessionID] = append(d.suggestions[ev.SessionID], ev.Suggestion)
			d.mu.Unlock()
			d.changed(ev.SessionID)
		}
		return
	}

	d.routeToRegistry(ev)

	d.mu.Lock()
	prev, exists := d.states[ev.SessionID]
	if !exists {
		if !startsStream(ev.Kind) {
			// Events for a session with no stream state are dropped; a
			// stale retry notice or terminal signal cannot create one.
			d.mu.Unlock()
			return
		}
		prev = StartState()
	}
	next := Reduce(prev, ev)
	d.states[ev.SessionID] = next
	d.mu.Unlock()
	d.changed(ev.SessionID)

	switch ev.Kind {
	case EventComplete:
		d.finalizeComplete(ctx, ev)
	case EventError:
		d.finalizeError(ctx, ev)
	}
}

// startsStream reports whether an event may open stream state for a session
// that has none. Terminal and retry signals never do.
func startsStream(kind EventKind) bool {
	switch kind {
	case EventTextDelta, EventTextComplete, EventToolStart, EventToolResult,
		EventTaskBackgrounded, EventTaskProgress, EventShellBackgrounded,
		EventUsageUpdate, EventCompacting, EventCompactComplete:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) routeToRegistry(ev SessionEvent) {
	switch ev.Kind {
	case EventTaskBackgrounded:
		d.tasks.Add(ev.SessionID, BackgroundTask{
			ID:        ev.TaskID,
			Type:      TaskTypeAgent,
			ToolUseID: ev.ToolUseID,
			Intent:    ev.Intent,
		})
	case EventShellBackgrounded:
		d.tasks.Add(ev.SessionID, BackgroundTask{
			ID:        ev.ShellID,
			Type:      TaskTypeShell,
			ToolUseID: ev.ToolUseID,
			Intent:    ev.Intent,
		})
	case EventTaskProgress:
		d.tasks.UpdateProgress(ev.SessionID, ev.ToolUseID, ev.ElapsedSeconds)
	case EventToolResult:
		d.tasks.Remove(ev.SessionID, ev.ToolUseID)
	case EventShellKilled:
		d.tasks.RemoveByTaskOrShellID(ev.SessionID, ev.ShellID)
	}
}

// finalizeComplete reconciles a finished stream. The session may have been
// stopped and restarted while this completion signal was in flight, so the
// running flag is re-checked immediately before every destructive step; a
// newer stream owns the session the moment it sets running again.
func (d *Dispatcher) finalizeComplete(ctx context.Context, ev SessionEvent) {
	if len(ev.Messages) > 0 {
		// Fast path: the completion signal carries the final persisted
		// messages, no reload round trip and no reload race.
		d.applyFinalMessages(ev.SessionID, ev.Messages)
		d.teardown(ev.SessionID)
		d.notify("Response complete", "")
		return
	}
	d.finalizeWithReload(ctx, ev.SessionID, "Response complete", "")
}

func (d *Dispatcher) finalizeError(ctx context.Context, ev SessionEvent) {
	d.finalizeWithReload(ctx, ev.SessionID, "Agent error", ev.ErrorMessage)
}

// finalizeWithReload is the fallback path: reload persisted messages
// asynchronously, then come back to the event loop and re-check the running
// flag before applying anything.
func (d *Dispatcher) finalizeWithReload(ctx context.Context, sessionID, notifyTitle, notifyBody string) {
	if d.store == nil {
		d.teardown(sessionID)
		d.notify(notifyTitle, notifyBody)
		return
	}
	go func() {
		msgs, err := d.store.LoadMessages(sessionID)
		if err != nil {
			d.logger.Error("reload messages after stream end", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
			msgs = nil
		}
		_ = d.call(ctx, func() {
			if msgs != nil {
				d.applyFinalMessages(sessionID, msgs)
			}
			d.teardown(sessionID)
			d.notify(notifyTitle, notifyBody)
		})
	}()
}

// applyFinalMessages overwrites the visible message list unless a newer
// stream has taken the session over.
func (d *Dispatcher) applyFinalMessages(sessionID string, msgs []StoredMessage) {
	d.mu.Lock()
	if st, ok := d.states[sessionID]; ok && st.Running {
		d.mu.Unlock()
		return
	}
	d.messages[sessionID] = msgs
	d.mu.Unlock()
	d.changed(sessionID)
}

// teardown clears the task list and removes the settling stream state. Each
// step re-checks the running flag on its own: state can change between
// steps when the fallback reload interleaved with a restart.
func (d *Dispatcher) teardown(sessionID string) {
	d.mu.Lock()
	if st, ok := d.states[sessionID]; ok && st.Running {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.tasks.Clear(sessionID)

	d.mu.Lock()
	if st, ok := d.states[sessionID]; ok && st.Running {
		d.mu.Unlock()
		return
	}
	delete(d.states, sessionID)
	d.mu.Unlock()
	d.changed(sessionID)
}

func (d *Dispatcher) notify(title, body string) {
	if !d.notificationsEnabled || d.notifier == nil {
		return
	}
	d.notifier.Notify(title, body)
}

func (d *Dispatcher) changed(sessionID string) {
	if d.onChange != nil {
		d.onChange(sessionID)
	}
}

// --- read access for the surrounding application ---

// BeginStream seeds running stream state for a session before its first
// event arrives, so an immediate transport failure still has state to
// settle. Takes effect in event order like everything else.
func (d *Dispatcher) BeginStream(ctx context.Context, sessionID string) error {
	return d.call(ctx, func() {
		d.mu.Lock()
		if st, ok := d.states[sessionID]; ok && st.Running {
			d.mu.Unlock()
			return
		}
		d.states[sessionID] = StartState()
		d.mu.Unlock()
		d.changed(sessionID)
	})
}

// State returns the current stream state for a session, if any.
func (d *Dispatcher) State(sessionID string) (SessionStreamState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.states[sessionID]
	return st, ok
}

// GroupedActivities returns the display hierarchy for a session's stream.
func (d *Dispatcher) GroupedActivities(sessionID string) []ActivityNode {
	d.mu.RLock()
	st, ok := d.states[sessionID]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	return GroupActivities(st.ToolActivities)
}

// Messages returns the visible persisted message list for a session.
func (d *Dispatcher) Messages(sessionID string) []StoredMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	msgs := d.messages[sessionID]
	out := make([]StoredMessage, len(msgs))
	copy(out, msgs)
	return out
}

// SetMessages seeds the visible message list, e.g. when a session is opened.
func (d *Dispatcher) SetMessages(sessionID string, msgs []StoredMessage) {
	d.mu.Lock()
	d.messages[sessionID] = msgs
	d.mu.Unlock()
	d.changed(sessionID)
}

// BackgroundTasks returns the session's tracked background tasks.
func (d *Dispatcher) BackgroundTasks(ctx context.Context, sessionID string) []BackgroundTask {
	var out []BackgroundTask
	if err := d.call(ctx, func() { out = d.tasks.Tasks(sessionID) }); err != nil {
		return nil
	}
	return out
}

// StopTask cancels a backgrounded execution. The stop call runs on the event
// loop, so no other event interleaves with it; the entry is removed only
// after the backend confirms and retained on failure.
func (d *Dispatcher) StopTask(ctx context.Context, sessionID, id string, taskType TaskType) error {
	var stopErr error
	if err := d.call(ctx, func() {
		stopErr = d.tasks.Stop(ctx, sessionID, id, taskType)
	}); err != nil {
		return err
	}
	return stopErr
}

// PermissionQueue returns the pending permission requests, oldest first.
func (d *Dispatcher) PermissionQueue(sessionID string) []PermissionRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reqs := d.permissions[sessionID]
	out := make([]PermissionRequest, len(reqs))
	copy(out, reqs)
	return out
}

// ResolvePermission removes a pending permission request by id. The actual
// allow/deny decision travels to the backend by other means; the dispatcher
// only maintains the queue.
func (d *Dispatcher) ResolvePermission(sessionID, requestID string) {
	d.mu.Lock()
	reqs := d.permissions[sessionID]
	for i := range reqs {
		if reqs[i].ID == requestID {
			d.permissions[sessionID] = append(reqs[:i:i], reqs[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.changed(sessionID)
}

// AskQueue returns the pending ask-user requests, oldest first.
func (d *Dispatcher) AskQueue(sessionID string) []AskUserRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reqs := d.asks[sessionID]
	out := make([]AskUserRequest, len(reqs))
	copy(out, reqs)
	return out
}

// ResolveAsk removes a pending ask-user request by id.
func (d *Dispatcher) ResolveAsk(sessionID, requestID string) {
	d.mu.Lock()
	reqs := d.asks[sessionID]
	for i := range reqs {
		if reqs[i].ID == requestID {
			d.asks[sessionID] = append(reqs[:i:i], reqs[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.changed(sessionID)
}

// PromptSuggestions returns suggestions received for a session.
func (d *Dispatcher) PromptSuggestions(sessionID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.suggestions[sessionID]))
	copy(out, d.suggestions[sessionID])
	return out
}
