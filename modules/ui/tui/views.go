package tui

import (
	"fmt"
	"strings"
	"time"

	"fred-chat/modules"
	"fred-chat/modules/core/chat"
	"fred-chat/modules/ui/core"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the top header bar
func (m *Model) renderHeader() string {
	title := TitleStyle.Render(modules.AppName)
	version := SubtitleStyle.Render("v" + modules.AppVersion)

	chatVM := m.state.Chat
	left := fmt.Sprintf(" %s %s │ %s", title, version, truncate(chatVM.SessionTitle, 40))

	var status string
	if chatVM.Waiting {
		status = StatusRunning.Render(m.spinner.View() + " thinking")
	} else {
		status = StatusStopped.Render(IconIdle + " idle")
	}
	agent := chatVM.AgentDisplay
	if agent == "" {
		agent = "no agent"
	}
	right := fmt.Sprintf("%s  %s ", HelpKeyStyle.Render("@"+agent), status)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		left,
		strings.Repeat(" ", padding),
		right,
	)

	return lipgloss.NewStyle().
		Background(ColorBgAlt).
		Width(m.width).
		Render(header)
}

// renderSidebar renders the session list
func (m *Model) renderSidebar() string {
	itemWidth := SidebarWidth - 2
	height := m.viewport.Height

	title := PanelTitleStyle.Padding(0, 1).Width(itemWidth).Render("≡ SESSIONS")
	separator := lipgloss.NewStyle().
		Foreground(ColorBorder).
		Padding(0, 1).
		Render(strings.Repeat("─", itemWidth-2))

	items := []string{title, separator}

	sessions := m.state.Sessions.Sessions
	if len(sessions) == 0 {
		items = append(items, SubtitleStyle.Padding(0, 1).Render("No conversations yet"))
	}

	// Keep the selection visible
	visible := max(1, height-3)
	start := 0
	if m.sessionIndex >= visible {
		start = m.sessionIndex - visible + 1
	}
	end := min(len(sessions), start+visible)

	for i := start; i < end; i++ {
		s := sessions[i]
		label := truncate(s.Title, itemWidth-10)
		line := fmt.Sprintf("%-*s %5s", itemWidth-8, label, s.Updated)

		switch {
		case s.Active:
			items = append(items, NavItemActiveStyle.Width(itemWidth).Render(line))
		case i == m.sessionIndex && m.focusArea == FocusSidebar:
			items = append(items, NavItemSelectedStyle.Width(itemWidth).Render(line))
		default:
			items = append(items, NavItemStyle.Width(itemWidth).Render(line))
		}
	}

	style := UnfocusedBorderStyle
	if m.focusArea == FocusSidebar {
		style = FocusedBorderStyle
	}
	return style.
		Width(itemWidth).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, items...))
}

// renderConversation renders the conversation pane
func (m *Model) renderConversation() string {
	style := UnfocusedBorderStyle
	if m.focusArea == FocusConversation {
		style = FocusedBorderStyle
	}
	return style.Render(m.viewport.View())
}

// renderNodes renders the render list, returning the first line of each node
func (m *Model) renderNodes(width int) (string, []int) {
	chatVM := m.state.Chat
	if len(chatVM.Nodes) == 0 && !chatVM.Waiting {
		return m.renderWelcome(width), nil
	}

	contentWidth := max(10, width-2)
	var lines []string
	offsets := make([]int, 0, len(chatVM.Nodes))

	for i, node := range chatVM.Nodes {
		offsets = append(offsets, len(lines))

		var block string
		if node.Kind == chat.NodeTurn && node.Turn != nil {
			block = m.renderTurn(*node.Turn, contentWidth)
		} else {
			block = m.renderGroup(node, contentWidth)
		}

		marker := UnselectedMarker
		if i == m.nodeIndex && m.focusArea == FocusConversation {
			marker = SelectedMarker
		}
		for _, line := range strings.Split(block, "\n") {
			lines = append(lines, marker+" "+line)
		}
		lines = append(lines, "")
	}

	if chatVM.Waiting {
		lines = append(lines, "  "+m.spinner.View()+" "+SubtitleStyle.Render(orDefault(chatVM.AgentDisplay, "Assistant")+" is thinking..."))
	}
	return strings.Join(lines, "\n"), offsets
}

func (m *Model) renderWelcome(width int) string {
	chatVM := m.state.Chat
	lines := []string{
		"",
		TitleStyle.Render("Start a new conversation"),
		"",
		SubtitleStyle.Render("Talking to " + orDefault(chatVM.AgentDisplay, "the default agent")),
		SubtitleStyle.Render("Ctrl+A picks another agent, Tab moves between panels"),
	}
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(strings.Join(lines, "\n"))
}

// renderTurn renders a standalone turn
func (m *Model) renderTurn(turn core.TurnVM, width int) string {
	var author string
	switch turn.Kind {
	case string(chat.KindHuman):
		author = HumanAuthorStyle.Render(turn.Author)
	case string(chat.KindSystem):
		author = SystemAuthorStyle.Render("System")
	default:
		author = AgentAuthorStyle.Render(turn.Author)
	}
	header := author
	if turn.Time != "" {
		header += " " + MetaStyle.Render(turn.Time)
	}

	parts := []string{header, m.markdown.Render(turn.Content, width, m.darkMode())}

	if len(turn.Sources) > 0 {
		for _, src := range turn.Sources {
			line := IconSource + " " + truncate(src.Title, width-12)
			if src.Score > 0 {
				line += fmt.Sprintf(" (%.2f)", src.Score)
			}
			parts = append(parts, MetaStyle.Render(line))
		}
	}

	var meta []string
	if turn.Model != "" {
		meta = append(meta, turn.Model)
	}
	if turn.Tokens != "" {
		meta = append(meta, turn.Tokens)
	}
	if len(meta) > 0 {
		parts = append(parts, MetaStyle.Render(strings.Join(meta, " · ")))
	}
	return strings.Join(parts, "\n")
}

// renderGroup renders a task group, its members only when expanded
func (m *Model) renderGroup(node core.NodeVM, width int) string {
	icon := IconCollapsed
	if node.Expanded {
		icon = IconExpanded
	}
	header := GroupHeaderStyle.Render(icon + " " + node.Summary)
	if node.Agent != "" {
		header += " " + MetaStyle.Render("by "+node.Agent)
	}
	if !node.Expanded {
		return header
	}

	parts := []string{header}
	for _, section := range node.Sections {
		parts = append(parts, "  "+TaskHeaderStyle.Render(section.Task))
		for _, turn := range section.Turns {
			label := SubtypeStyle.Render("[" + orDefault(turn.Subtype, turn.Kind) + "]")
			body := m.markdown.Render(turn.Content, width-4, m.darkMode())
			parts = append(parts, indent(label+"\n"+body, 4))
		}
	}
	return strings.Join(parts, "\n")
}

// renderInput renders the compose box
func (m *Model) renderInput() string {
	style := UnfocusedBorderStyle
	if m.focusArea == FocusInput {
		style = FocusedBorderStyle
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

// renderFooter renders the shortcut bar and the latest notification
func (m *Model) renderFooter() string {
	left := " " + m.help.View(m.keys)

	var right string
	if m.lastError != "" && time.Since(m.lastErrorTime) < 5*time.Second {
		right = StatusError.Render(" " + truncate(m.lastError, 50) + " ")
	} else if n := m.currentToast(); n != nil {
		right = NotificationStyle(string(n.Type)).Render(truncate(n.Message, 60))
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	footer := lipgloss.JoinHorizontal(
		lipgloss.Center,
		left,
		strings.Repeat(" ", padding),
		right,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Width(m.width).Background(ColorBgAlt).Render(footer),
		SubtitleStyle.Render(m.getFocusIndicatorLine()),
	)
}

// getFocusIndicatorLine returns a visual indicator of current focus
func (m *Model) getFocusIndicatorLine() string {
	areas := []string{"Input", "Conversation"}
	if !m.sidebarCollapsed() {
		areas = append(areas, "Sessions")
	}

	var parts []string
	for i, area := range areas {
		if FocusArea(i) == m.focusArea {
			parts = append(parts, lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("["+area+"]"))
		} else {
			parts = append(parts, SubtitleStyle.Render(" "+area+" "))
		}
	}

	line := " Focus: " + strings.Join(parts, " → ")
	if m.state.Chat.UserID != "" {
		line += SubtitleStyle.Render("   user " + m.state.Chat.UserID)
	}
	return line
}

// renderDialogOverlay renders the delete confirmation
func (m *Model) renderDialogOverlay(width, height int) string {
	yesStyle := ButtonStyle
	noStyle := ButtonStyle
	if m.dialogConfirm {
		yesStyle = ButtonActiveStyle
	} else {
		noStyle = ButtonActiveStyle
	}

	dialog := DialogStyle.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			DialogTitleStyle.Render("Confirm"),
			m.dialogMessage,
			"",
			lipgloss.JoinHorizontal(lipgloss.Center,
				yesStyle.Render(" Yes "),
				"  ",
				noStyle.Render(" No "),
			),
		),
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, dialog)
}

// renderAgentOverlay renders the agent picker
func (m *Model) renderAgentOverlay(width, height int) string {
	lines := []string{DialogTitleStyle.Render("Choose an agent")}

	agents := m.state.Agents.Agents
	if len(agents) == 0 {
		lines = append(lines, SubtitleStyle.Render("No agent available"))
	}
	for i, a := range agents {
		prefix := "  "
		if i == m.agentIndex {
			prefix = "> "
		}
		label := a.Display
		if a.Role != "" {
			label += SubtitleStyle.Render(" · " + a.Role)
		}
		if a.Selected {
			label += " " + StatusRunning.Render(IconStar)
		}
		line := prefix + label
		if i == m.agentIndex {
			line = NavItemSelectedStyle.Render(line)
		}
		lines = append(lines, line)
		if i == m.agentIndex && a.Description != "" {
			lines = append(lines, "    "+SubtitleStyle.Render(truncate(a.Description, 60)))
		}
	}
	lines = append(lines, "", SubtitleStyle.Render("Enter to select, Esc to cancel"))

	box := DialogStyle.Width(min(70, width-4)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// renderHelpOverlay renders the help overlay
func (m *Model) renderHelpOverlay(width, height int) string {
	helpContent := []string{
		DialogTitleStyle.Render("Keyboard Shortcuts"),
		HelpKeyStyle.Render("Panels"),
		"  Tab/S-Tab  Move between input, conversation and sessions",
		"  Esc        Back to the input box",
		"  PgUp/PgDn  Scroll the conversation",
		"",
		HelpKeyStyle.Render("Conversation"),
		"  Enter      Send (Alt+Enter for a new line)",
		"  ↑/↓        Select a message",
		"  Space      Expand or collapse a task group",
		"  1-5        Rate the selected answer",
		"",
		HelpKeyStyle.Render("Sessions"),
		"  Enter      Open session",
		"  x          Delete session",
		"  Ctrl+N     New conversation",
		"",
		HelpKeyStyle.Render("Other"),
		"  Ctrl+A     Choose agent",
		"  Ctrl+B     Toggle sidebar",
		"  Ctrl+T     Toggle dark mode",
		"  Ctrl+R     Refresh",
		"  Ctrl+C     Quit",
		"",
		SubtitleStyle.Render("Press any key to close"),
	}

	helpBox := DialogStyle.Width(60).Render(strings.Join(helpContent, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpBox)
}

// Helper functions

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
