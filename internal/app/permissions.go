package app

import "strings"

// Classification is the admission verdict for one tool invocation.
type Classification int

const (
	// NeedsDecision means the call matched no rule either way; the policy
	// layer has to ask the user (or auto-approve in full-access mode).
	NeedsDecision Classification = iota
	// AutoAllow means the call is read-only or otherwise harmless and may
	// run without confirmation.
	AutoAllow
	// FlagDangerous means the call mutates state, escalates privileges, or
	// chains execution; it must be surfaced regardless of mode.
	FlagDangerous
)

func (c Classification) String() string {
	switch c {
	case AutoAllow:
		return "auto-allow"
	case FlagDangerous:
		return "dangerous"
	default:
		return "needs-decision"
	}
}

const (
	PermissionsPrompt     = "prompt"
	PermissionsFullAccess = "full-access"
)

// ParsePermissionsMode parses a user-provided permissions mode into a
// canonical value.
func ParsePermissionsMode(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.ReplaceAll(value, " ", "-")

	switch value {
	case "prompt", "ask", "default":
		return PermissionsPrompt, true
	case "full-access", "full", "auto", "yolo":
		return PermissionsFullAccess, true
	default:
		return "", false
	}
}

// NormalizePermissionsMode returns a valid mode, defaulting to prompt.
func NormalizePermissionsMode(raw string) string {
	mode, ok := ParsePermissionsMode(raw)
	if !ok {
		return PermissionsPrompt
	}
	return mode
}

// Tools that only inspect state or talk to the user; always allowed no
// matter what their arguments are.
var autoAllowTools = map[string]bool{
	"Read":         true,
	"Glob":         true,
	"Grep":         true,
	"LS":           true,
	"WebSearch":    true,
	"WebFetch":     true,
	"TodoWrite":    true,
	"NotebookRead": true,
	"AskUser":      true,
}

// Read-only command prefixes. The first match wins and every entry is
// equally safe.
var safeCommandPrefixes = []string{
	"ls",
	"pwd",
	"whoami",
	"cat ",
	"head ",
	"tail ",
	"wc ",
	"grep ",
	"rg ",
	"find ",
	"which ",
	"file ",
	"stat ",
	"du ",
	"df ",
	"ps",
	"env",
	"printenv",
	"echo ",
	"date",
	"uname",
	"git status",
	"git log",
	"git diff",
	"git show",
	"git branch",
	"git remote",
	"go list",
	"go env",
	"go version",
	"npm ls",
	"npm view",
}

// Mutating, privileged, or network-transfer command prefixes.
var dangerousCommandPrefixes = []string{
	"rm ",
	"rmdir ",
	"sudo ",
	"su ",
	"chmod ",
	"chown ",
	"chgrp ",
	"mv ",
	"dd ",
	"mkfs",
	"fdisk",
	"kill ",
	"killall ",
	"pkill ",
	"shutdown",
	"reboot",
	"git push --force",
	"git push -f",
	"git reset --hard",
	"git clean",
	"npm publish",
	"scp ",
	"rsync ",
	"curl ",
	"wget ",
}

// ClassifyTool decides whether a tool invocation may run unconfirmed. For
// the shell tool the command string is inspected; every other tool is judged
// by name alone.
func ClassifyTool(toolName string, input map[string]any) Classification {
	if autoAllowTools[toolName] {
		return AutoAllow
	}
	if toolName == "Bash" {
		command, _ := input["command"].(string)
		return ClassifyCommand(command)
	}
	return NeedsDecision
}

// ClassifyCommand applies the shell-command rules, strictest first:
//
//  1. pipes, output redirection, and find -exec/-delete are dangerous no
//     matter how the command starts;
//  2. a safe read-only prefix auto-allows;
//  3. a dangerous prefix flags;
//  4. everything else needs a decision.
func ClassifyCommand(command string) Classification {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return NeedsDecision
	}

	if commandHasDangerousStructure(cmd) {
		return FlagDangerous
	}

	lower := strings.ToLower(cmd)
	for _, prefix := range safeCommandPrefixes {
		if lower == strings.TrimSpace(prefix) || strings.HasPrefix(lower, prefix) {
			return AutoAllow
		}
	}
	for _, prefix := range dangerousCommandPrefixes {
		if lower == strings.TrimSpace(prefix) || strings.HasPrefix(lower, prefix) {
			return FlagDangerous
		}
	}
	return NeedsDecision
}

// commandHasDangerousStructure catches commands that look safe by prefix but
// chain arbitrary execution or writes: pipes, output redirection (> and >>),
// and the find -exec/-delete flags.
func commandHasDangerousStructure(cmd string) bool {
	if strings.Contains(cmd, "|") {
		return true
	}
	if strings.Contains(cmd, ">") {
		return true
	}
	if strings.Contains(cmd, "-exec") || strings.Contains(cmd, "-delete") {
		return true
	}
	return false
}
