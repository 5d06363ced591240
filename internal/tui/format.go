package tui

import (
	"fmt"
	"strings"

	"agent-desk/internal/app"
)

// FormatActivities renders the grouped activity tree as inline chat-zone
// lines, optimized for live readability while a stream runs.
func FormatActivities(nodes []app.ActivityNode) string {
	var b strings.Builder
	for _, node := range nodes {
		if node.Group != nil {
			b.WriteString(formatActivityLine(node.Group.Parent, "• "))
			for _, child := range node.Group.Children {
				b.WriteString(formatActivityLine(child, "  └ "))
			}
			continue
		}
		if node.Activity != nil {
			b.WriteString(formatActivityLine(*node.Activity, "• "))
		}
	}
	return b.String()
}

func formatActivityLine(act app.ToolActivity, prefix string) string {
	label := act.DisplayName
	if label == "" {
		label = act.ToolName
	}
	detail := activityDetail(act)

	status := ""
	switch {
	case act.Done && act.IsError:
		status = " (failed)"
	case !act.Done && act.IsBackground:
		status = " (background)"
	case !act.Done && act.ElapsedSeconds > 0:
		status = fmt.Sprintf(" (%.0fs)", act.ElapsedSeconds)
	case !act.Done:
		status = " ..."
	}

	line := prefix + label + status
	if detail != "" {
		line += ": " + detail
	}
	return line + "\n"
}

func activityDetail(act app.ToolActivity) string {
	if cmd, ok := act.Input["command"].(string); ok {
		return truncateText(oneLine(cmd), 80)
	}
	if path, ok := act.Input["file_path"].(string); ok {
		return truncateText(path, 80)
	}
	if pattern, ok := act.Input["pattern"].(string); ok {
		return truncateText(pattern, 80)
	}
	if act.Intent != "" {
		return truncateText(oneLine(act.Intent), 80)
	}
	return ""
}

// FormatStreamBanners renders transient stream status lines: retry notices,
// compaction, and context usage.
func FormatStreamBanners(st app.SessionStreamState) string {
	var lines []string
	if st.Retrying != nil {
		r := st.Retrying
		line := fmt.Sprintf("Retrying (%d/%d) in %ds", r.Attempt, r.MaxAttempts, r.DelaySeconds)
		if r.Reason != "" {
			line += ": " + truncateText(oneLine(r.Reason), 60)
		}
		lines = append(lines, line)
	}
	if st.IsCompacting {
		lines = append(lines, "Compacting conversation context...")
	}
	if st.InputTokens > 0 && st.ContextWindow > 0 {
		pct := float64(st.InputTokens) * 100 / float64(st.ContextWindow)
		lines = append(lines, fmt.Sprintf("Context: %d / %d tokens (%.0f%%)", st.InputTokens, st.ContextWindow, pct))
	} else if st.InputTokens == 0 && st.Content != "" {
		// No usage report yet; show a client-side estimate of the reply.
		lines = append(lines, fmt.Sprintf("Context: ~%d tokens", app.EstimateTokens(st.Content)))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func truncateText(input string, max int) string {
	input = strings.TrimSpace(input)
	if max <= 0 || len(input) <= max {
		return input
	}
	return strings.TrimSpace(input[:max]) + "..."
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}
