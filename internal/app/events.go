package app

import "time"

// EventKind discriminates decoded session events. The set is closed: the
// reducer and dispatcher switch over every kind, and unknown kinds fall
// through to a no-op.
type EventKind string

const (
	EventTextDelta         EventKind = "text_delta"
	EventTextComplete      EventKind = "text_complete"
	EventToolStart         EventKind = "tool_start"
	EventToolResult        EventKind = "tool_result"
	EventTaskBackgrounded  EventKind = "task_backgrounded"
	EventTaskProgress      EventKind = "task_progress"
	EventShellBackgrounded EventKind = "shell_backgrounded"
	EventShellKilled       EventKind = "shell_killed"
	EventUsageUpdate       EventKind = "usage_update"
	EventCompacting        EventKind = "compacting"
	EventCompactComplete   EventKind = "compact_complete"
	EventRetrying          EventKind = "retrying"
	EventComplete          EventKind = "complete"
	EventError             EventKind = "error"
	EventPermissionRequest EventKind = "permission_request"
	EventAskUser           EventKind = "ask_user"
	EventPromptSuggestion  EventKind = "prompt_suggestion"
)

// RetryInfo carries the payload of a retrying event.
type RetryInfo struct {
	Attempt      int    `json:"attempt"`
	MaxAttempts  int    `json:"max_attempts"`
	DelaySeconds int    `json:"delay_seconds"`
	Reason       string `json:"reason,omitempty"`
}

// PermissionRequest asks the user to approve a tool invocation. Requests are
// queued FIFO per session and removed only by explicit resolution.
type PermissionRequest struct {
	ID          string         `json:"id"`
	ToolName    string         `json:"tool_name"`
	Input       map[string]any `json:"input,omitempty"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AskUserRequest is a free-form question from the agent to the user.
type AskUserRequest struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionEvent is one decoded event for one session. Exactly the fields for
// the event's Kind are populated; the rest stay zero.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`

	// text_delta
	Text string `json:"text,omitempty"`

	// tool_start / tool_result / task_* / shell_*
	ToolUseID       string         `json:"tool_use_id,omitempty"`
	ToolName        string         `json:"tool_name,omitempty"`
	Input           map[string]any `json:"input,omitempty"`
	Intent          string         `json:"intent,omitempty"`
	DisplayName     string         `json:"display_name,omitempty"`
	ParentToolUseID string         `json:"parent_tool_use_id,omitempty"`
	Result          string         `json:"result,omitempty"`
	IsError         bool           `json:"is_error,omitempty"`
	TaskID          string         `json:"task_id,omitempty"`
	ShellID         string         `json:"shell_id,omitempty"`
	ElapsedSeconds  float64        `json:"elapsed_seconds,omitempty"`

	// usage_update
	Model         string `json:"model,omitempty"`
	InputTokens   int    `json:"input_tokens,omitempty"`
	ContextWindow *int   `json:"context_window,omitempty"`

	// retrying
	Retry *RetryInfo `json:"retry,omitempty"`

	// error
	ErrorMessage string `json:"error,omitempty"`

	// complete: final persisted messages when the backend includes them
	// (fast-path finalization, no reload round trip).
	Messages []StoredMessage `json:"messages,omitempty"`

	// permission_request / ask_user / prompt_suggestion
	Permission *PermissionRequest `json:"permission,omitempty"`
	Ask        *AskUserRequest    `json:"ask,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`

	At time.Time `json:"at,omitempty"`
}
