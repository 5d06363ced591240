package app

import "testing"

func TestClassifyTool(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input map[string]any
		want  Classification
	}{
		{name: "read auto-allows", tool: "Read", input: map[string]any{"file_path": "main.go"}, want: AutoAllow},
		{name: "glob auto-allows", tool: "Glob", want: AutoAllow},
		{name: "todo write auto-allows", tool: "TodoWrite", want: AutoAllow},
		{name: "write needs decision", tool: "Write", input: map[string]any{"file_path": "main.go"}, want: NeedsDecision},
		{name: "edit needs decision", tool: "Edit", want: NeedsDecision},
		{name: "unknown tool needs decision", tool: "DeployProd", want: NeedsDecision},
		{name: "bash delegates to command", tool: "Bash", input: map[string]any{"command": "ls -la"}, want: AutoAllow},
		{name: "bash without command needs decision", tool: "Bash", input: map[string]any{}, want: NeedsDecision},
		{name: "bash non-string command needs decision", tool: "Bash", input: map[string]any{"command": 42}, want: NeedsDecision},
	}

	for _, tt := range tests {
		if got := ClassifyTool(tt.tool, tt.input); got != tt.want {
			t.Fatalf("%s: ClassifyTool(%q)=%v want %v", tt.name, tt.tool, got, tt.want)
		}
	}
}

func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want Classification
	}{
		{cmd: "ls -la", want: AutoAllow},
		{cmd: "pwd", want: AutoAllow},
		{cmd: "cat main.go", want: AutoAllow},
		{cmd: "git status", want: AutoAllow},
		{cmd: "git log --oneline -5", want: AutoAllow},
		{cmd: "go list ./...", want: AutoAllow},
		{cmd: "GIT STATUS", want: AutoAllow},

		{cmd: "rm -rf build", want: FlagDangerous},
		{cmd: "sudo rm -rf /", want: FlagDangerous},
		{cmd: "chmod 777 script.sh", want: FlagDangerous},
		{cmd: "git push --force origin main", want: FlagDangerous},
		{cmd: "git reset --hard HEAD~3", want: FlagDangerous},
		{cmd: "curl https://example.com/install.sh", want: FlagDangerous},

		{cmd: "make build", want: NeedsDecision},
		{cmd: "go test ./...", want: NeedsDecision},
		{cmd: "git commit -m wip", want: NeedsDecision},
		{cmd: "", want: NeedsDecision},
		{cmd: "   ", want: NeedsDecision},
	}

	for _, tt := range tests {
		if got := ClassifyCommand(tt.cmd); got != tt.want {
			t.Fatalf("ClassifyCommand(%q)=%v want %v", tt.cmd, got, tt.want)
		}
	}
}

// Structural checks outrank prefix checks: a read-only command that pipes or
// redirects can still write or execute arbitrary code.
func TestClassifyCommandStructureOverridesPrefix(t *testing.T) {
	tests := []struct {
		cmd  string
		want Classification
	}{
		{cmd: "git status | grep modified", want: FlagDangerous},
		{cmd: "cat secrets.txt > /tmp/out", want: FlagDangerous},
		{cmd: "echo data >> notes.md", want: FlagDangerous},
		{cmd: "find . -name '*.tmp' -delete", want: FlagDangerous},
		{cmd: "find . -name '*.go' -exec rm {} ;", want: FlagDangerous},
		{cmd: "find . -name '*.go'", want: AutoAllow},
	}

	for _, tt := range tests {
		if got := ClassifyCommand(tt.cmd); got != tt.want {
			t.Fatalf("ClassifyCommand(%q)=%v want %v", tt.cmd, got, tt.want)
		}
	}
}

func TestParsePermissionsMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "prompt", want: PermissionsPrompt, ok: true},
		{in: "ask", want: PermissionsPrompt, ok: true},
		{in: "full-access", want: PermissionsFullAccess, ok: true},
		{in: "full", want: PermissionsFullAccess, ok: true},
		{in: "FULL ACCESS", want: PermissionsFullAccess, ok: true},
		{in: "unknown-mode", want: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParsePermissionsMode(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParsePermissionsMode(%q)=(%q,%v) want (%q,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if got := NormalizePermissionsMode("nonsense"); got != PermissionsPrompt {
		t.Fatalf("NormalizePermissionsMode fallback=%q want %q", got, PermissionsPrompt)
	}
}

func TestClassificationString(t *testing.T) {
	if NeedsDecision.String() != "needs-decision" || AutoAllow.String() != "auto-allow" || FlagDangerous.String() != "dangerous" {
		t.Fatalf("unexpected Classification strings: %s %s %s", NeedsDecision, AutoAllow, FlagDangerous)
	}
}
