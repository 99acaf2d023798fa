package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Layout constants
const (
	SidebarWidth = 32
	InputHeight  = 3
	HeaderHeight = 1
	FooterHeight = 2
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorWarning   = lipgloss.Color("#F59E0B") // Orange
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray
	ColorText      = lipgloss.Color("#F9FAFB") // Light
	ColorBg        = lipgloss.Color("#111827") // Dark
	ColorBgAlt     = lipgloss.Color("#1F2937") // Dark alt
	ColorBorder    = lipgloss.Color("#374151") // Gray border
)

// Base styles
var (
	// Title
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// Subtitle
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Status indicators
	StatusRunning = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	StatusStopped = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StatusError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	// Sidebar entries
	NavItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	NavItemActiveStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorPrimary).
				Foreground(ColorText).
				Bold(true)

	NavItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorBgAlt).
				Foreground(ColorText)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	// Conversation
	HumanAuthorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorSecondary)

	AgentAuthorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary)

	SystemAuthorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWarning)

	MetaStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	GroupHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorSecondary)

	TaskHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMuted)

	SubtypeStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	SelectedMarker   = lipgloss.NewStyle().Foreground(ColorPrimary).Render("▌")
	UnselectedMarker = " "

	// Notifications
	NotifyInfoStyle = lipgloss.NewStyle().
			Background(ColorSecondary).
			Foreground(ColorText).
			Padding(0, 1)

	NotifySuccessStyle = lipgloss.NewStyle().
				Background(ColorSuccess).
				Foreground(ColorText).
				Padding(0, 1)

	NotifyWarningStyle = lipgloss.NewStyle().
				Background(ColorWarning).
				Foreground(ColorBg).
				Padding(0, 1)

	NotifyErrorStyle = lipgloss.NewStyle().
				Background(ColorError).
				Foreground(ColorText).
				Padding(0, 1)

	// Help
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Focus
	FocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	UnfocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder)

	// Dialog
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2).
			Background(ColorBgAlt)

	DialogTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				MarginBottom(1)

	// Button
	ButtonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Background(ColorBgAlt).
			Foreground(ColorText)

	ButtonActiveStyle = lipgloss.NewStyle().
				Padding(0, 2).
				Background(ColorPrimary).
				Foreground(ColorText).
				Bold(true)
)

// Icons (using Unicode symbols for cross-platform compatibility)
const (
	IconConnected = "●"
	IconIdle      = "○"
	IconCollapsed = "▸"
	IconExpanded  = "▾"
	IconSource    = "↳"
	IconStar      = "★"
)

// NotificationStyle returns the badge style of a notification type
func NotificationStyle(n string) lipgloss.Style {
	switch n {
	case "success":
		return NotifySuccessStyle
	case "warning":
		return NotifyWarningStyle
	case "error":
		return NotifyErrorStyle
	default:
		return NotifyInfoStyle
	}
}
