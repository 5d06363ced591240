package app

// ToolActivity is one tool invocation observed on a session's stream. It is
// created on the first tool_start for a tool use id and mutated by identity
// of that id until tool_result marks it done.
type ToolActivity struct {
	ToolUseID       string         `json:"tool_use_id"`
	ToolName        string         `json:"tool_name"`
	Input           map[string]any `json:"input,omitempty"`
	Intent          string         `json:"intent,omitempty"`
	DisplayName     string         `json:"display_name,omitempty"`
	Result          string         `json:"result,omitempty"`
	IsError         bool           `json:"is_error,omitempty"`
	Done            bool           `json:"done"`
	ParentToolUseID string         `json:"parent_tool_use_id,omitempty"`
	ElapsedSeconds  float64        `json:"elapsed_seconds,omitempty"`
	TaskID          string         `json:"task_id,omitempty"`
	ShellID         string         `json:"shell_id,omitempty"`
	IsBackground    bool           `json:"is_background,omitempty"`
}

// SessionStreamState is the reduced view of one session's in-flight stream.
// It exists only while a stream is running or settling; the dispatcher owns
// the map of these and discards entries after finalization.
type SessionStreamState struct {
	Running        bool           `json:"running"`
	Content        string         `json:"content"`
	ToolActivities []ToolActivity `json:"tool_activities,omitempty"`
	Model          string         `json:"model,omitempty"`
	InputTokens    int            `json:"input_tokens,omitempty"`
	ContextWindow  int            `json:"context_window,omitempty"`
	IsCompacting   bool           `json:"is_compacting,omitempty"`
	Retrying       *RetryInfo     `json:"retrying,omitempty"`
	ErrorMessage   string         `json:"error,omitempty"`
}

// Reduce maps (previous state, event) to the next state. It is pure: the
// previous value and everything reachable from it is left untouched, and the
// same inputs always produce the same output. Events referencing an unknown
// tool use id reduce to an unchanged state.
func Reduce(prev SessionStreamState, ev SessionEvent) SessionStreamState {
	switch ev.Kind {
	case EventTextDelta:
		next := prev
		next.Running = true
		next.Content = prev.Content + ev.Text
		next.Retrying = nil
		return next

	case EventTextComplete:
		// Signal only; the accumulated content already holds the text.
		return prev

	case EventToolStart:
		next := prev
		next.Running = true
		next.Retrying = nil
		if idx := activityIndex(prev.ToolActivities, ev.ToolUseID); idx >= 0 {
			// Repeated tool_start refines the pending invocation in place.
			next.ToolActivities = cloneActivities(prev.ToolActivities)
			act := &next.ToolActivities[idx]
			if len(ev.Input) > 0 {
				act.Input = mergeInput(act.Input, ev.Input)
			}
			if ev.Intent != "" {
				act.Intent = ev.Intent
			}
			if ev.DisplayName != "" {
				act.DisplayName = ev.DisplayName
			}
			return next
		}
		next.ToolActivities = append(cloneActivities(prev.ToolActivities), ToolActivity{
			ToolUseID:       ev.ToolUseID,
			ToolName:        ev.ToolName,
			Input:           copyInput(ev.Input),
			Intent:          ev.Intent,
			DisplayName:     ev.DisplayName,
			ParentToolUseID: ev.ParentToolUseID,
		})
		return next

	case EventToolResult:
		return updateActivity(prev, ev.ToolUseID, func(act *ToolActivity) {
			act.Done = true
			act.Result = ev.Result
			act.IsError = ev.IsError
		})

	case EventTaskBackgrounded:
		return updateActivity(prev, ev.ToolUseID, func(act *ToolActivity) {
			act.IsBackground = true
			act.TaskID = ev.TaskID
		})

	case EventTaskProgress:
		return updateActivity(prev, ev.ToolUseID, func(act *ToolActivity) {
			act.ElapsedSeconds = ev.ElapsedSeconds
		})

	case EventShellBackgrounded:
		return updateActivity(prev, ev.ToolUseID, func(act *ToolActivity) {
			act.IsBackground = true
			act.ShellID = ev.ShellID
		})

	case EventShellKilled:
		// The task registry handles removal; stream state is unaffected.
		return prev

	case EventUsageUpdate:
		next := prev
		next.InputTokens = ev.InputTokens
		if ev.Model != "" {
			next.Model = ev.Model
		}
		// The context window is only reported on some updates; absence must
		// not erase a previously reported value.
		if ev.ContextWindow != nil {
			next.ContextWindow = *ev.ContextWindow
		}
		return next

	case EventCompacting:
		next := prev
		next.IsCompacting = true
		return next

	case EventCompactComplete:
		next := prev
		next.IsCompacting = false
		return next

	case EventRetrying:
		if !prev.Running {
			// A retry notice for a stream that already settled is stale.
			return prev
		}
		next := prev
		if ev.Retry != nil {
			r := *ev.Retry
			next.Retrying = &r
		}
		return next

	case EventComplete:
		next := prev
		next.Running = false
		next.Retrying = nil
		return next

	case EventError:
		next := prev
		next.Running = false
		next.Retrying = nil
		next.ErrorMessage = ev.ErrorMessage
		return next

	default:
		// Permission, ask-user, and prompt-suggestion events live in their
		// own queues; unknown kinds are ignored.
		return prev
	}
}

// StartState is the state a brand-new stream begins from.
func StartState() SessionStreamState {
	return SessionStreamState{Running: true}
}

func activityIndex(activities []ToolActivity, toolUseID string) int {
	if toolUseID == "" {
		return -1
	}
	for i := range activities {
		if activities[i].ToolUseID == toolUseID {
			return i
		}
	}
	return -1
}

// updateActivity returns prev with fn applied to the activity matching
// toolUseID. When no activity matches, prev is returned as-is: events for
// unknown ids must never fail (tool_start is guaranteed to arrive first on a
// healthy stream, but the reducer does not get to assume healthy streams).
func updateActivity(prev SessionStreamState, toolUseID string, fn func(*ToolActivity)) SessionStreamState {
	idx := activityIndex(prev.ToolActivities, toolUseID)
	if idx < 0 {
		return prev
	}
	next := prev
	next.ToolActivities = cloneActivities(prev.ToolActivities)
	fn(&next.ToolActivities[idx])
	return next
}

func cloneActivities(activities []ToolActivity) []ToolActivity {
	if len(activities) == 0 {
		return nil
	}
	out := make([]ToolActivity, len(activities))
	copy(out, activities)
	return out
}

func copyInput(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}

func mergeInput(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
