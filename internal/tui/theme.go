package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeSlate ThemeName = "slate"
	ThemeAmber ThemeName = "amber"
)

type Theme struct {
	Name ThemeName

	// Colors
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor

	Accent  lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warn    lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor

	// Styles
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Banner  lipgloss.Style
	Spinner lipgloss.Style

	InputBox lipgloss.Style

	RoleUser      lipgloss.Style
	RoleAssistant lipgloss.Style
	RoleSystem    lipgloss.Style

	ActivityLive lipgloss.Style
	ActivityDone lipgloss.Style
	ActivityErr  lipgloss.Style

	PermissionBox lipgloss.Style
	DangerBadge   lipgloss.Style
}

func NewTheme() Theme {
	if os.Getenv("ADESK_NO_COLOR") == "1" {
		return newNoColorTheme()
	}
	switch ThemeName(os.Getenv("ADESK_THEME")) {
	case ThemeAmber:
		return newAmberTheme()
	default:
		return newSlateTheme()
	}
}

func newSlateTheme() Theme {
	t := Theme{
		Name:        ThemeSlate,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1d2433", Dark: "#f2f2f2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#4a5568", Dark: "#9aa0a6"},
		Accent:      lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#7aa2ff"},
		Success:     lipgloss.AdaptiveColor{Light: "#0f766e", Dark: "#46d1b7"},
		Warn:        lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f4b27d"},
		Error:       lipgloss.AdaptiveColor{Light: "#b42318", Dark: "#ff7a7a"},
		Border:      lipgloss.AdaptiveColor{Light: "#cbd5e0", Dark: "#3a3a3a"},
	}
	return applyStyles(t)
}

func newAmberTheme() Theme {
	t := Theme{
		Name:        ThemeAmber,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#111827", Dark: "#eaeaea"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#374151", Dark: "#8d8d8d"},
		Accent:      lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f4b27d"},
		Success:     lipgloss.AdaptiveColor{Light: "#059669", Dark: "#46d1b7"},
		Warn:        lipgloss.AdaptiveColor{Light: "#d97706", Dark: "#f4b27d"},
		Error:       lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#ff7a7a"},
		Border:      lipgloss.AdaptiveColor{Light: "#9ca3af", Dark: "#2a2a2a"},
	}
	return applyStyles(t)
}

func newNoColorTheme() Theme {
	flat := lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}
	muted := lipgloss.AdaptiveColor{Light: "#333333", Dark: "#dddddd"}
	t := Theme{
		Name:        "no-color",
		TextPrimary: flat,
		TextMuted:   muted,
		Accent:      flat,
		Success:     flat,
		Warn:        flat,
		Error:       flat,
		Border:      muted,
	}
	return applyStyles(t)
}

func applyStyles(t Theme) Theme {
	t.Header = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.Banner = lipgloss.NewStyle().Foreground(t.Warn)
	t.Spinner = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)

	t.InputBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)

	t.RoleUser = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RoleAssistant = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.RoleSystem = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.ActivityLive = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.ActivityDone = lipgloss.NewStyle().Foreground(t.Success)
	t.ActivityErr = lipgloss.NewStyle().Foreground(t.Error)

	t.PermissionBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Warn).Padding(0, 1)
	t.DangerBadge = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	return t
}
