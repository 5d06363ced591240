package app

import (
	"reflect"
	"testing"
)

func TestReduceTextDeltaAccumulates(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventTextDelta, Text: "Hello"})
	st = Reduce(st, SessionEvent{Kind: EventTextDelta, Text: ", world"})

	if st.Content != "Hello, world" {
		t.Fatalf("content=%q want %q", st.Content, "Hello, world")
	}
	if !st.Running {
		t.Fatalf("running should stay true while deltas arrive")
	}
}

func TestReduceDoesNotMutatePrev(t *testing.T) {
	prev := StartState()
	prev = Reduce(prev, SessionEvent{
		Kind:      EventToolStart,
		ToolUseID: "tu-1",
		ToolName:  "Bash",
		Input:     map[string]any{"command": "ls"},
	})
	before := prev.ToolActivities[0].Input["command"]
	next := Reduce(prev, SessionEvent{
		Kind:      EventToolStart,
		ToolUseID: "tu-1",
		Input:     map[string]any{"command": "ls -la"},
	})
	if prev.ToolActivities[0].Input["command"] != before {
		t.Fatalf("previous state mutated: %v", prev.ToolActivities[0].Input)
	}
	if next.ToolActivities[0].Input["command"] != "ls -la" {
		t.Fatalf("merge did not apply: %v", next.ToolActivities[0].Input)
	}
}

func TestReduceToolLifecycle(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{
		Kind:      EventToolStart,
		ToolUseID: "tu-1",
		ToolName:  "Read",
		Input:     map[string]any{"file_path": "main.go"},
	})
	if len(st.ToolActivities) != 1 || st.ToolActivities[0].Done {
		t.Fatalf("expected one pending activity, got %+v", st.ToolActivities)
	}

	st = Reduce(st, SessionEvent{
		Kind:      EventToolResult,
		ToolUseID: "tu-1",
		Result:    "package main",
	})
	act := st.ToolActivities[0]
	if !act.Done || act.IsError || act.Result != "package main" {
		t.Fatalf("result not applied: %+v", act)
	}
}

func TestReduceUnknownToolUseIDIsNoop(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventToolStart, ToolUseID: "tu-1", ToolName: "Glob"})

	events := []SessionEvent{
		{Kind: EventToolResult, ToolUseID: "missing", Result: "x"},
		{Kind: EventTaskBackgrounded, ToolUseID: "missing", TaskID: "task-9"},
		{Kind: EventTaskProgress, ToolUseID: "missing", ElapsedSeconds: 3},
		{Kind: EventShellBackgrounded, ToolUseID: "missing", ShellID: "sh-9"},
	}
	for _, ev := range events {
		next := Reduce(st, ev)
		if !reflect.DeepEqual(next, st) {
			t.Fatalf("%s with unknown id changed state:\n prev %+v\n next %+v", ev.Kind, st, next)
		}
	}
}

func TestReduceRetryClearedByProgress(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventRetrying, Retry: &RetryInfo{Attempt: 1, MaxAttempts: 5, DelaySeconds: 2}})
	if st.Retrying == nil {
		t.Fatalf("retry state not recorded")
	}

	st = Reduce(st, SessionEvent{Kind: EventTextDelta, Text: "recovered"})
	if st.Retrying != nil {
		t.Fatalf("retry banner should clear once the stream resumes")
	}
}

func TestReduceRetryIgnoredWhenNotRunning(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventComplete})
	if st.Running {
		t.Fatalf("complete should stop the stream")
	}

	next := Reduce(st, SessionEvent{Kind: EventRetrying, Retry: &RetryInfo{Attempt: 2, MaxAttempts: 5}})
	if next.Retrying != nil {
		t.Fatalf("retry after completion must not resurrect the stream")
	}
}

func TestReduceUsageUpdate(t *testing.T) {
	window := 200000
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventUsageUpdate, Model: "m-1", InputTokens: 1200, ContextWindow: &window})
	if st.Model != "m-1" || st.InputTokens != 1200 || st.ContextWindow != 200000 {
		t.Fatalf("usage not applied: %+v", st)
	}

	// Absent context window keeps the last known value.
	st = Reduce(st, SessionEvent{Kind: EventUsageUpdate, InputTokens: 1500})
	if st.ContextWindow != 200000 {
		t.Fatalf("context window clobbered: %+v", st)
	}
	if st.InputTokens != 1500 {
		t.Fatalf("input tokens not updated: %+v", st)
	}
}

func TestReduceCompaction(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventCompacting})
	if !st.IsCompacting {
		t.Fatalf("compacting flag not set")
	}
	st = Reduce(st, SessionEvent{Kind: EventCompactComplete})
	if st.IsCompacting {
		t.Fatalf("compacting flag not cleared")
	}
}

func TestReduceErrorStops(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventRetrying, Retry: &RetryInfo{Attempt: 1}})
	st = Reduce(st, SessionEvent{Kind: EventError, ErrorMessage: "overloaded"})

	if st.Running {
		t.Fatalf("error must stop the stream")
	}
	if st.Retrying != nil {
		t.Fatalf("error must clear the retry banner")
	}
	if st.ErrorMessage != "overloaded" {
		t.Fatalf("error message=%q", st.ErrorMessage)
	}
}

func TestReduceBackgroundTransitions(t *testing.T) {
	st := StartState()
	st = Reduce(st, SessionEvent{Kind: EventToolStart, ToolUseID: "tu-1", ToolName: ToolNameTask, Intent: "run tests"})
	st = Reduce(st, SessionEvent{Kind: EventTaskBackgrounded, ToolUseID: "tu-1", TaskID: "task-1"})

	act := st.ToolActivities[0]
	if !act.IsBackground || act.TaskID != "task-1" || act.Done {
		t.Fatalf("backgrounding not applied: %+v", act)
	}

	st = Reduce(st, SessionEvent{Kind: EventTaskProgress, ToolUseID: "tu-1", ElapsedSeconds: 12.5})
	if st.ToolActivities[0].ElapsedSeconds != 12.5 {
		t.Fatalf("progress not applied: %+v", st.ToolActivities[0])
	}

	st = Reduce(st, SessionEvent{Kind: EventToolResult, ToolUseID: "tu-1", Result: "done"})
	if !st.ToolActivities[0].Done {
		t.Fatalf("result should close a backgrounded activity")
	}
}
