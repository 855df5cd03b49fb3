package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a color palette for the TUI
type Theme struct {
	Name string

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Accent    lipgloss.AdaptiveColor

	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor

	Border     lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
}

// buildTheme creates a theme from light/dark color pairs
func buildTheme(name string, primary, secondary, accent, success, warning, errorColor, border, foreground, muted [2]string) Theme {
	return Theme{
		Name:       name,
		Primary:    lipgloss.AdaptiveColor{Light: primary[0], Dark: primary[1]},
		Secondary:  lipgloss.AdaptiveColor{Light: secondary[0], Dark: secondary[1]},
		Accent:     lipgloss.AdaptiveColor{Light: accent[0], Dark: accent[1]},
		Success:    lipgloss.AdaptiveColor{Light: success[0], Dark: success[1]},
		Warning:    lipgloss.AdaptiveColor{Light: warning[0], Dark: warning[1]},
		Error:      lipgloss.AdaptiveColor{Light: errorColor[0], Dark: errorColor[1]},
		Border:     lipgloss.AdaptiveColor{Light: border[0], Dark: border[1]},
		Foreground: lipgloss.AdaptiveColor{Light: foreground[0], Dark: foreground[1]},
		Muted:      lipgloss.AdaptiveColor{Light: muted[0], Dark: muted[1]},
	}
}

// Available themes
var (
	DefaultTheme = buildTheme("default",
		[2]string{"#1E40AF", "#3B82F6"}, [2]string{"#6B7280", "#9CA3AF"}, [2]string{"#7C3AED", "#A855F7"},
		[2]string{"#059669", "#10B981"}, [2]string{"#D97706", "#F59E0B"}, [2]string{"#DC2626", "#EF4444"},
		[2]string{"#D1D5DB", "#374151"}, [2]string{"#111827", "#F9FAFB"}, [2]string{"#6B7280", "#9CA3AF"})

	HighContrastTheme = buildTheme("high-contrast",
		[2]string{"#000000", "#FFFFFF"}, [2]string{"#666666", "#BBBBBB"}, [2]string{"#000080", "#8080FF"},
		[2]string{"#006600", "#00FF00"}, [2]string{"#CC6600", "#FFAA00"}, [2]string{"#CC0000", "#FF4444"},
		[2]string{"#000000", "#FFFFFF"}, [2]string{"#000000", "#FFFFFF"}, [2]string{"#666666", "#BBBBBB"})

	MinimalTheme = buildTheme("minimal",
		[2]string{"#2D3748", "#E2E8F0"}, [2]string{"#718096", "#A0AEC0"}, [2]string{"#4A5568", "#CBD5E0"},
		[2]string{"#2F855A", "#68D391"}, [2]string{"#C05621", "#F6AD55"}, [2]string{"#C53030", "#FC8181"},
		[2]string{"#E2E8F0", "#2D3748"}, [2]string{"#2D3748", "#F7FAFC"}, [2]string{"#A0AEC0", "#718096"})
)

// ThemeByName looks up a theme. The default theme is returned for unknown names.
func ThemeByName(name string) (Theme, bool) {
	switch name {
	case "", "default":
		return DefaultTheme, true
	case "high-contrast":
		return HighContrastTheme, true
	case "minimal":
		return MinimalTheme, true
	default:
		return DefaultTheme, false
	}
}

// IsColorDisabled checks if colors should be disabled
func IsColorDisabled() bool {
	return os.Getenv("NO_COLOR") != ""
}

// GetAvailableThemes returns list of available theme names
func GetAvailableThemes() []string {
	return []string{"default", "high-contrast", "minimal"}
}

// styles are the rendered pieces of the screen
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	line    lipgloss.Style
	errLine lipgloss.Style
	guess   lipgloss.Style
	status  map[status]lipgloss.Style
	panel   lipgloss.Style
	pane    lipgloss.Style
}

func newStyles(theme Theme, color bool) *styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &styles{
			title:   plain.Bold(true),
			label:   plain,
			value:   plain,
			muted:   plain,
			line:    plain,
			errLine: plain,
			guess:   plain.Bold(true),
			status:  map[status]lipgloss.Style{},
			panel:   plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
			pane:    plain.Border(lipgloss.NormalBorder()),
		}
	}

	return &styles{
		title:   lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Padding(0, 1),
		label:   lipgloss.NewStyle().Foreground(theme.Secondary),
		value:   lipgloss.NewStyle().Foreground(theme.Foreground),
		muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		line:    lipgloss.NewStyle().Foreground(theme.Foreground),
		errLine: lipgloss.NewStyle().Foreground(theme.Error).Bold(true),
		guess:   lipgloss.NewStyle().Foreground(theme.Accent).Bold(true),
		status: map[status]lipgloss.Style{
			statusLoading: lipgloss.NewStyle().Foreground(theme.Warning).Bold(true),
			statusRunning: lipgloss.NewStyle().Foreground(theme.Success).Bold(true),
			statusStopped: lipgloss.NewStyle().Foreground(theme.Muted).Bold(true),
			statusFailed:  lipgloss.NewStyle().Foreground(theme.Error).Bold(true),
		},
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),
		pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
	}
}

func (s *styles) statusStyle(st status) lipgloss.Style {
	if style, ok := s.status[st]; ok {
		return style
	}
	return s.value
}
