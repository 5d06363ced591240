package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseAgentLine(t *testing.T) {
	deltas, err := ParseAgentLine(`{"type":"chunk","delta":"Hello"}`)
	if err != nil {
		t.Fatalf("ParseAgentLine: %v", err)
	}
	if len(deltas) != 1 || deltas[0].Kind != DeltaChunk || deltas[0].Text != "Hello" {
		t.Fatalf("chunk decode: %+v", deltas)
	}

	deltas, err = ParseAgentLine(`{"type":"reasoning","reasoning":"thinking"}`)
	if err != nil {
		t.Fatalf("ParseAgentLine: %v", err)
	}
	if deltas[0].Kind != DeltaReasoning || deltas[0].Text != "thinking" {
		t.Fatalf("reasoning decode: %+v", deltas)
	}

	deltas, err = ParseAgentLine(`{"type":"tool_start","tool_use_id":"tu-1","tool_name":"Read"}`)
	if err != nil {
		t.Fatalf("ParseAgentLine: %v", err)
	}
	if deltas[0].Kind != DeltaKind("tool_start") || deltas[0].Raw["tool_use_id"] != "tu-1" {
		t.Fatalf("raw frame decode: %+v", deltas)
	}

	if _, err := ParseAgentLine("{broken"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFrameToEvent(t *testing.T) {
	tests := []struct {
		name     string
		delta    Delta
		wantKind EventKind
		wantOK   bool
	}{
		{name: "chunk", delta: Delta{Kind: DeltaChunk, Text: "hi"}, wantKind: EventTextDelta, wantOK: true},
		{name: "reasoning dropped", delta: Delta{Kind: DeltaReasoning, Text: "hm"}, wantOK: false},
		{name: "done becomes complete", delta: Delta{Kind: DeltaDone}, wantKind: EventComplete, wantOK: true},
		{
			name: "tool start",
			delta: Delta{Kind: "tool_start", Raw: map[string]any{
				"type": "tool_start", "tool_use_id": "tu-1", "tool_name": "Bash",
				"input": map[string]any{"command": "ls"},
			}},
			wantKind: EventToolStart, wantOK: true,
		},
		{
			name: "tool result with string payload",
			delta: Delta{Kind: "tool_result", Raw: map[string]any{
				"type": "tool_result", "tool_use_id": "tu-1", "result": "file contents",
			}},
			wantKind: EventToolResult, wantOK: true,
		},
		{
			name: "retrying",
			delta: Delta{Kind: "retrying", Raw: map[string]any{
				"type": "retrying", "retry": map[string]any{"attempt": 2, "max_attempts": 5, "delay_seconds": 4},
			}},
			wantKind: EventRetrying, wantOK: true,
		},
		{
			name:  "unknown frame dropped",
			delta: Delta{Kind: "ping", Raw: map[string]any{"type": "ping"}},
		},
	}

	for _, tt := range tests {
		ev, ok := frameToEvent("s1", tt.delta)
		if ok != tt.wantOK {
			t.Fatalf("%s: ok=%v want %v", tt.name, ok, tt.wantOK)
		}
		if !ok {
			continue
		}
		if ev.SessionID != "s1" {
			t.Fatalf("%s: session id not stamped", tt.name)
		}
		if ev.Kind != tt.wantKind {
			t.Fatalf("%s: kind=%s want %s", tt.name, ev.Kind, tt.wantKind)
		}
	}
}

func TestFrameToEventDetails(t *testing.T) {
	ev, ok := frameToEvent("s1", Delta{Kind: "tool_result", Raw: map[string]any{
		"type": "tool_result", "tool_use_id": "tu-1",
		"result": map[string]any{"stdout": "done"}, "is_error": true,
	}})
	if !ok || ev.Kind != EventToolResult {
		t.Fatalf("decode: %+v ok=%v", ev, ok)
	}
	if !ev.IsError {
		t.Fatalf("is_error lost")
	}
	// Structured results are carried as their JSON text.
	if ev.Result == "" {
		t.Fatalf("structured result dropped")
	}

	ev, ok = frameToEvent("s1", Delta{Kind: "retrying", Raw: map[string]any{
		"type": "retrying", "retry": map[string]any{"attempt": 3, "max_attempts": 10, "delay_seconds": 8, "reason": "overloaded"},
	}})
	if !ok || ev.Retry == nil || ev.Retry.Attempt != 3 || ev.Retry.Reason != "overloaded" {
		t.Fatalf("retry payload: %+v", ev.Retry)
	}

	ev, ok = frameToEvent("s1", Delta{Kind: "permission_request", Raw: map[string]any{
		"type": "permission_request", "tool_name": "Write", "input": map[string]any{"file_path": "a.go"},
	}})
	if !ok || ev.Permission == nil || ev.Permission.ID == "" || ev.Permission.ToolName != "Write" {
		t.Fatalf("permission payload: %+v", ev.Permission)
	}

	ev, ok = frameToEvent("s1", Delta{Kind: "ask_user", Raw: map[string]any{
		"type": "ask_user", "question": "Proceed?", "options": []any{"yes", "no"},
	}})
	if !ok || ev.Ask == nil || ev.Ask.Question != "Proceed?" || len(ev.Ask.Options) != 2 {
		t.Fatalf("ask payload: %+v", ev.Ask)
	}
}

func TestRunSessionStreamDispatchesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"chunk\",\"delta\":\"Hello\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"tool_start\",\"tool_use_id\":\"tu-1\",\"tool_name\":\"Read\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"tool_result\",\"tool_use_id\":\"tu-1\",\"result\":\"ok\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	store := newMemStore()
	store.msgs["s1"] = []StoredMessage{{ID: "m1", SessionID: "s1", Role: "assistant", Content: "Hello"}}
	d, ctx := startDispatcher(t, DispatcherOptions{Store: store})

	if err := RunSessionStream(ctx, NewStreamClient(nil), cfg, d, "s1", "hi"); err != nil {
		t.Fatalf("RunSessionStream: %v", err)
	}

	waitUntil(t, "finalization", func() bool {
		_, live := d.State("s1")
		return !live
	})
	msgs := d.Messages("s1")
	if len(msgs) != 1 || msgs[0].Content != "Hello" {
		t.Fatalf("messages after stream: %+v", msgs)
	}
}

func TestRunSessionStreamTransportErrorDispatchesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	d, ctx := startDispatcher(t, DispatcherOptions{Store: newMemStore()})

	if err := RunSessionStream(ctx, NewStreamClient(nil), cfg, d, "s1", "hi"); err == nil {
		t.Fatalf("expected transport error")
	}

	// The dispatched error event must settle the seeded stream state.
	waitUntil(t, "error finalization", func() bool {
		_, live := d.State("s1")
		return !live
	})
}

func TestHTTPTaskStopper(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	stopper := &HTTPTaskStopper{Client: NewStreamClient(nil), Config: cfg}

	if err := stopper.StopExecution(context.Background(), "task-1", TaskTypeAgent); err != nil {
		t.Fatalf("StopExecution: %v", err)
	}
	if gotPath != "/control/stop" {
		t.Fatalf("path=%q", gotPath)
	}
}

func TestHTTPTaskStopperBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	stopper := &HTTPTaskStopper{Client: NewStreamClient(nil), Config: cfg}

	if err := stopper.StopExecution(context.Background(), "task-1", TaskTypeShell); err == nil {
		t.Fatalf("expected error from non-2xx stop response")
	}
}
