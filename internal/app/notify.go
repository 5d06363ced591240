package app

import (
	"os/exec"
	"runtime"
	"strings"
)

// Notifier delivers a desktop notification. Fire-and-forget: failures are
// never surfaced, a missed notification must not disturb the event pipeline.
type Notifier interface {
	Notify(title, body string)
}

// CommandNotifier shells out to the platform notifier.
type CommandNotifier struct{}

func (CommandNotifier) Notify(title, body string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "agent-desk"
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := "display notification " + appleScriptQuote(body) + " with title " + appleScriptQuote(title)
		cmd = exec.Command("osascript", "-e", script)
	default:
		if _, err := exec.LookPath("notify-send"); err != nil {
			return
		}
		cmd = exec.Command("notify-send", title, body)
	}
	go func() { _ = cmd.Run() }()
}

func appleScriptQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
