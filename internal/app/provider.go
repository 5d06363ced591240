package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// providerFrame is the wire shape of one decoded stream frame from the agent
// backend: a type tag plus the fields that type uses.
type providerFrame struct {
	Type            string          `json:"type"`
	Delta           string          `json:"delta,omitempty"`
	Reasoning       string          `json:"reasoning,omitempty"`
	ToolUseID       string          `json:"tool_use_id,omitempty"`
	ToolName        string          `json:"tool_name,omitempty"`
	Input           map[string]any  `json:"input,omitempty"`
	Intent          string          `json:"intent,omitempty"`
	DisplayName     string          `json:"display_name,omitempty"`
	ParentToolUseID string          `json:"parent_tool_use_id,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	IsError         bool            `json:"is_error,omitempty"`
	TaskID          string          `json:"task_id,omitempty"`
	ShellID         string          `json:"shell_id,omitempty"`
	ElapsedSeconds  float64         `json:"elapsed_seconds,omitempty"`
	Model           string          `json:"model,omitempty"`
	InputTokens     int             `json:"input_tokens,omitempty"`
	ContextWindow   *int            `json:"context_window,omitempty"`
	Retry           *RetryInfo      `json:"retry,omitempty"`
	Error           string          `json:"error,omitempty"`
	Question        string          `json:"question,omitempty"`
	Options         []string        `json:"options,omitempty"`
	Suggestion      string          `json:"suggestion,omitempty"`
}

// ParseAgentLine decodes one frame payload into typed deltas. Frames the
// core does not model are forwarded raw so the caller can translate them.
func ParseAgentLine(payload string) ([]Delta, error) {
	var frame providerFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch frame.Type {
	case "chunk":
		return []Delta{{Kind: DeltaChunk, Text: frame.Delta}}, nil
	case "reasoning":
		return []Delta{{Kind: DeltaReasoning, Text: frame.Reasoning}}, nil
	default:
		var raw map[string]any
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, err
		}
		return []Delta{{Kind: DeltaKind(frame.Type), Raw: raw}}, nil
	}
}

// frameToEvent translates one decoded delta into a session event, or returns
// false for deltas that carry nothing the dispatcher consumes.
func frameToEvent(sessionID string, d Delta) (SessionEvent, bool) {
	now := time.Now()
	switch d.Kind {
	case DeltaChunk:
		return SessionEvent{SessionID: sessionID, Kind: EventTextDelta, Text: d.Text, At: now}, true
	case DeltaReasoning:
		// Reasoning is accumulated by the reader; the session view only
		// tracks primary output.
		return SessionEvent{}, false
	case DeltaDone:
		return SessionEvent{SessionID: sessionID, Kind: EventComplete, At: now}, true
	}

	var frame providerFrame
	raw, err := json.Marshal(d.Raw)
	if err != nil {
		return SessionEvent{}, false
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return SessionEvent{}, false
	}

	ev := SessionEvent{
		SessionID:       sessionID,
		ToolUseID:       frame.ToolUseID,
		ToolName:        frame.ToolName,
		Input:           frame.Input,
		Intent:          frame.Intent,
		DisplayName:     frame.DisplayName,
		ParentToolUseID: frame.ParentToolUseID,
		IsError:         frame.IsError,
		TaskID:          frame.TaskID,
		ShellID:         frame.ShellID,
		ElapsedSeconds:  frame.ElapsedSeconds,
		Model:           frame.Model,
		InputTokens:     frame.InputTokens,
		ContextWindow:   frame.ContextWindow,
		Retry:           frame.Retry,
		ErrorMessage:    frame.Error,
		At:              now,
	}
	if len(frame.Result) > 0 {
		var s string
		if err := json.Unmarshal(frame.Result, &s); err == nil {
			ev.Result = s
		} else {
			ev.Result = string(frame.Result)
		}
	}

	switch string(d.Kind) {
	case "text_complete":
		ev.Kind = EventTextComplete
	case "tool_start":
		ev.Kind = EventToolStart
	case "tool_result":
		ev.Kind = EventToolResult
	case "task_backgrounded":
		ev.Kind = EventTaskBackgrounded
	case "task_progress":
		ev.Kind = EventTaskProgress
	case "shell_backgrounded":
		ev.Kind = EventShellBackgrounded
	case "shell_killed":
		ev.Kind = EventShellKilled
	case "usage_update":
		ev.Kind = EventUsageUpdate
	case "compacting":
		ev.Kind = EventCompacting
	case "compact_complete":
		ev.Kind = EventCompactComplete
	case "retrying":
		ev.Kind = EventRetrying
	case "error":
		ev.Kind = EventError
	case "permission_request":
		ev.Kind = EventPermissionRequest
		ev.Permission = &PermissionRequest{
			ID:       uuid.NewString(),
			ToolName: frame.ToolName,
			Input:    frame.Input,
		}
	case "ask_user":
		ev.Kind = EventAskUser
		ev.Ask = &AskUserRequest{
			ID:       uuid.NewString(),
			Question: frame.Question,
			Options:  frame.Options,
		}
	case "prompt_suggestion":
		ev.Kind = EventPromptSuggestion
		ev.Suggestion = frame.Suggestion
	default:
		return SessionEvent{}, false
	}
	return ev, true
}

// RunSessionStream executes one streaming turn for a session, forwarding
// every decoded event to the dispatcher as it arrives. The terminal complete
// or error event is always dispatched, even when the transport fails.
func RunSessionStream(ctx context.Context, client *StreamClient, cfg Config, d *Dispatcher, sessionID, prompt string) error {
	payload, err := json.Marshal(map[string]any{
		"model":      cfg.Model,
		"max_tokens": cfg.MaxTokens,
		"stream":     true,
		"session_id": sessionID,
		"messages": []map[string]string{{
			"role":    "user",
			"content": prompt,
		}},
	})
	if err != nil {
		return err
	}

	if err := d.BeginStream(ctx, sessionID); err != nil {
		return err
	}

	req := StreamRequest{
		URL: cfg.BaseURL,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			"Accept":            "text/event-stream",
			"x-api-key":         cfg.APIKey,
			"anthropic-version": "2023-06-01",
		},
		Body: payload,
	}

	_, err = client.Stream(ctx, req, ParseAgentLine, func(delta Delta) {
		if ev, ok := frameToEvent(sessionID, delta); ok {
			d.Dispatch(ev)
		}
	})
	if err != nil {
		d.Dispatch(SessionEvent{
			SessionID:    sessionID,
			Kind:         EventError,
			ErrorMessage: err.Error(),
			At:           time.Now(),
		})
		return err
	}
	return nil
}

// HTTPTaskStopper cancels backgrounded executions through the backend's
// control endpoint.
type HTTPTaskStopper struct {
	Client *StreamClient
	Config Config
}

func (s *HTTPTaskStopper) StopExecution(ctx context.Context, id string, taskType TaskType) error {
	payload, err := json.Marshal(map[string]string{
		"id":   id,
		"type": string(taskType),
	})
	if err != nil {
		return err
	}
	req := StreamRequest{
		URL: strings.TrimSuffix(s.Config.BaseURL, "/") + "/control/stop",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"x-api-key":    s.Config.APIKey,
		},
		Body: payload,
	}
	if _, err := s.Client.Complete(ctx, req); err != nil {
		return fmt.Errorf("stop %s %s: %w", taskType, id, err)
	}
	return nil
}
