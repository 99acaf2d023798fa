package tui

import (
	"strconv"
	"strings"
	"time"

	"fred-chat/modules/core/chat"
	"fred-chat/modules/ui/core"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FocusArea represents which area has focus
type FocusArea int

const (
	FocusInput FocusArea = iota
	FocusConversation
	FocusSidebar
)

// toast is a notification with its arrival time
type toast struct {
	notification *core.Notification
	at           time.Time
}

// Model is the main Bubble Tea model for the TUI
type Model struct {
	// Core
	presenter core.Presenter
	state     *core.AppState
	keys      KeyMap
	markdown  *markdownRenderer

	// UI state
	width  int
	height int
	ready  bool

	// Focus management
	focusArea    FocusArea
	sessionIndex int // Selected entry in the sidebar
	nodeIndex    int // Selected node of the conversation
	agentIndex   int // Selected entry of the agent picker

	// Overlays
	showHelp      bool
	showAgents    bool
	showDialog    bool
	dialogMessage string
	dialogConfirm bool
	pendingDelete string // Session waiting for delete confirmation

	// Conversation layout
	nodeOffsets []int // First viewport line of each node
	followTail  bool

	// Components
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	input    textarea.Model

	// Notifications
	toasts []toast

	// Errors
	lastError     string
	lastErrorTime time.Time
}

// NewModel creates a new TUI model
func NewModel(presenter core.Presenter) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	h := help.New()
	h.ShowAll = false
	h.Styles.ShortKey = HelpKeyStyle
	h.Styles.ShortDesc = HelpDescStyle
	h.Styles.ShortSeparator = HelpDescStyle

	in := textarea.New()
	in.Placeholder = "Ask something..."
	in.ShowLineNumbers = false
	in.CharLimit = 0
	in.SetHeight(InputHeight)
	in.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	in.Focus()

	// Seed from the presenter, views are already loaded
	state := core.NewAppState()
	if presenter != nil {
		for _, vt := range []core.ViewModelType{core.VMChat, core.VMSessions, core.VMAgents, core.VMPreferences} {
			if vm, err := presenter.GetViewModel(vt); err == nil {
				state.UpdateViewModel(vm)
			}
		}
	}

	return &Model{
		presenter:  presenter,
		state:      state,
		keys:       DefaultKeyMap(),
		markdown:   newMarkdownRenderer(),
		focusArea:  FocusInput,
		help:       h,
		spinner:    s,
		input:      in,
		followTail: true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
		tea.WindowSize(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()

	case tea.KeyMsg:
		if cmd, handled := m.handleKeyPress(msg); handled {
			return m, cmd
		}
		// Unhandled keys go to the input box
		if m.focusArea == FocusInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.followTail = m.viewport.AtBottom()
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.state.Chat.Waiting {
			m.refreshConversation()
		}

	case stateUpdateMsg:
		m.handleStateUpdate(msg.update)

	case notificationMsg:
		m.handleNotification(msg.notification)

	case errMsg:
		m.lastError = msg.Error()
		m.lastErrorTime = time.Now()

	default:
		if m.focusArea == FocusInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.renderHeader()
	body := m.renderConversation()
	if !m.sidebarCollapsed() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	screen := lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderInput(), m.renderFooter())

	bodyHeight := m.height
	switch {
	case m.showDialog:
		return m.renderDialogOverlay(m.width, bodyHeight)
	case m.showAgents:
		return m.renderAgentOverlay(m.width, bodyHeight)
	case m.showHelp:
		return m.renderHelpOverlay(m.width, bodyHeight)
	}
	return screen
}

// handleKeyPress processes keyboard input, reporting whether the key was consumed
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keys.Exit) {
		return tea.Quit, true
	}

	switch {
	case m.showDialog:
		return m.handleDialogKey(msg), true
	case m.showAgents:
		return m.handleAgentKey(msg), true
	case m.showHelp:
		m.showHelp = false
		return nil, true
	}

	// Global shortcuts
	switch {
	case key.Matches(msg, m.keys.Tab):
		m.cycleFocus(1)
		return nil, true
	case key.Matches(msg, m.keys.ShiftTab):
		m.cycleFocus(-1)
		return nil, true
	case key.Matches(msg, m.keys.NewConversation):
		m.nodeIndex = 0
		m.followTail = true
		return m.dispatch(core.NewEvent(core.EventNewConversation)), true
	case key.Matches(msg, m.keys.PickAgent):
		m.openAgentPicker()
		return nil, true
	case key.Matches(msg, m.keys.ToggleSidebar):
		if m.focusArea == FocusSidebar {
			m.setFocus(FocusInput)
		}
		return m.dispatch(core.NewEvent(core.EventToggleSidebar)), true
	case key.Matches(msg, m.keys.ToggleDark):
		return m.dispatch(core.NewEvent(core.EventToggleDarkMode)), true
	case key.Matches(msg, m.keys.Refresh):
		return m.dispatch(core.NewEvent(core.EventRefresh)), true
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.followTail = false
		return nil, true
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.followTail = m.viewport.AtBottom()
		return nil, true
	}

	switch m.focusArea {
	case FocusInput:
		return m.handleInputKey(msg)
	case FocusConversation:
		return m.handleConversationKey(msg), true
	case FocusSidebar:
		return m.handleSidebarKey(msg), true
	}
	return nil, false
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return nil, true
		}
		m.input.Reset()
		m.followTail = true
		return m.dispatch(core.SendEvent(text)), true
	case key.Matches(msg, m.keys.Escape):
		m.setFocus(FocusConversation)
		return nil, true
	}
	return nil, false
}

func (m *Model) handleConversationKey(msg tea.KeyMsg) tea.Cmd {
	nodes := m.state.Chat.Nodes
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.nodeIndex > 0 {
			m.nodeIndex--
		}
		m.followTail = false
		m.refreshConversation()
		m.scrollToNode()
	case key.Matches(msg, m.keys.Down):
		if m.nodeIndex < len(nodes)-1 {
			m.nodeIndex++
		}
		m.followTail = m.nodeIndex == len(nodes)-1
		m.refreshConversation()
		m.scrollToNode()
	case key.Matches(msg, m.keys.Space), key.Matches(msg, m.keys.Enter):
		if node, ok := m.selectedNode(); ok && node.Kind != chat.NodeTurn {
			return m.dispatch(core.NewEvent(core.EventToggleGroup).WithTarget(node.Key))
		}
	case key.Matches(msg, m.keys.Rate):
		node, ok := m.selectedNode()
		if !ok || node.Turn == nil || node.Turn.Kind == string(chat.KindHuman) {
			return nil
		}
		rating, _ := strconv.Atoi(msg.String())
		return m.dispatch(core.FeedbackEvent(node.Turn.ID, strconv.Itoa(rating), ""))
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.setFocus(FocusInput)
	}
	return nil
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	sessions := m.state.Sessions.Sessions
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sessionIndex > 0 {
			m.sessionIndex--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sessionIndex < len(sessions)-1 {
			m.sessionIndex++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.sessionIndex < len(sessions) {
			m.nodeIndex = 0
			m.followTail = true
			m.setFocus(FocusInput)
			return m.dispatch(core.SelectSessionEvent(sessions[m.sessionIndex].ID))
		}
	case key.Matches(msg, m.keys.Delete):
		if m.sessionIndex < len(sessions) {
			s := sessions[m.sessionIndex]
			m.pendingDelete = s.ID
			m.dialogMessage = "Delete \"" + truncate(s.Title, 40) + "\"?"
			m.dialogConfirm = false
			m.showDialog = true
		}
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.setFocus(FocusInput)
	}
	return nil
}

func (m *Model) handleDialogKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "left", "right", "tab", "h", "l":
		m.dialogConfirm = !m.dialogConfirm
		return nil
	case "y", "Y":
		m.dialogConfirm = true
	case "n", "N", "esc":
		m.dialogConfirm = false
	case "enter":
	default:
		return nil
	}

	m.showDialog = false
	target := m.pendingDelete
	m.pendingDelete = ""
	if !m.dialogConfirm || target == "" {
		return nil
	}
	if m.sessionIndex > 0 {
		m.sessionIndex--
	}
	return m.dispatch(core.NewEvent(core.EventDeleteSession).WithTarget(target))
}

func (m *Model) handleAgentKey(msg tea.KeyMsg) tea.Cmd {
	agents := m.state.Agents.Agents
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.agentIndex > 0 {
			m.agentIndex--
		}
	case key.Matches(msg, m.keys.Down):
		if m.agentIndex < len(agents)-1 {
			m.agentIndex++
		}
	case key.Matches(msg, m.keys.Enter):
		m.showAgents = false
		if m.agentIndex < len(agents) {
			return m.dispatch(core.NewEvent(core.EventSelectAgent).WithTarget(agents[m.agentIndex].Name))
		}
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.PickAgent):
		m.showAgents = false
	}
	return nil
}

func (m *Model) openAgentPicker() {
	m.agentIndex = 0
	for i, a := range m.state.Agents.Agents {
		if a.Selected {
			m.agentIndex = i
		}
	}
	m.showAgents = true
}

// cycleFocus cycles through focus areas
func (m *Model) cycleFocus(direction int) {
	numAreas := 3
	if m.sidebarCollapsed() {
		numAreas = 2
	}

	next := int(m.focusArea) + direction
	if next < 0 {
		next = numAreas - 1
	} else if next >= numAreas {
		next = 0
	}
	m.setFocus(FocusArea(next))
}

func (m *Model) setFocus(area FocusArea) {
	m.focusArea = area
	if area == FocusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if area == FocusConversation && len(m.state.Chat.Nodes) > 0 && m.followTail {
		m.nodeIndex = len(m.state.Chat.Nodes) - 1
	}
	m.refreshConversation()
}

// dispatch runs a presenter event as a command
func (m *Model) dispatch(event *core.Event) tea.Cmd {
	presenter := m.presenter
	return func() tea.Msg {
		if presenter == nil {
			return nil
		}
		if err := presenter.HandleEvent(event); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// handleStateUpdate handles state updates from the presenter
func (m *Model) handleStateUpdate(update core.StateUpdate) {
	m.state.UpdateViewModel(update.ViewModel)

	switch update.ViewType {
	case core.VMChat:
		if m.nodeIndex >= len(m.state.Chat.Nodes) {
			m.nodeIndex = max(0, len(m.state.Chat.Nodes)-1)
		}
		if m.followTail && len(m.state.Chat.Nodes) > 0 {
			m.nodeIndex = len(m.state.Chat.Nodes) - 1
		}
		m.refreshConversation()
	case core.VMSessions:
		sessions := m.state.Sessions.Sessions
		for i, s := range sessions {
			if s.Active {
				m.sessionIndex = i
			}
		}
		if m.sessionIndex >= len(sessions) {
			m.sessionIndex = max(0, len(sessions)-1)
		}
	case core.VMPreferences:
		m.layout()
	}
}

// handleNotification keeps the last notifications
func (m *Model) handleNotification(n *core.Notification) {
	m.toasts = append(m.toasts, toast{notification: n, at: time.Now()})
	// Keep only last 5
	if len(m.toasts) > 5 {
		m.toasts = m.toasts[1:]
	}
}

// currentToast returns the newest notification still on screen
func (m *Model) currentToast() *core.Notification {
	if len(m.toasts) == 0 {
		return nil
	}
	t := m.toasts[len(m.toasts)-1]
	if d := t.notification.Duration; d > 0 && time.Since(t.at) > time.Duration(d)*time.Second {
		return nil
	}
	return t.notification
}

func (m *Model) selectedNode() (core.NodeVM, bool) {
	nodes := m.state.Chat.Nodes
	if m.nodeIndex < 0 || m.nodeIndex >= len(nodes) {
		return core.NodeVM{}, false
	}
	return nodes[m.nodeIndex], true
}

func (m *Model) sidebarCollapsed() bool {
	return m.state.Preferences != nil && m.state.Preferences.SidebarCollapsed
}

func (m *Model) darkMode() bool {
	return m.state.Preferences == nil || m.state.Preferences.DarkMode
}

// conversationWidth is the inner width of the conversation pane
func (m *Model) conversationWidth() int {
	width := m.width - 2
	if !m.sidebarCollapsed() {
		width -= SidebarWidth + 2
	}
	return max(20, width)
}

// layout sizes the components after a resize or a sidebar toggle
func (m *Model) layout() {
	if !m.ready {
		return
	}
	bodyHeight := m.height - HeaderHeight - FooterHeight - (InputHeight + 2) - 2
	m.viewport.Width = m.conversationWidth()
	m.viewport.Height = max(3, bodyHeight)
	m.input.SetWidth(m.width - 4)
	m.refreshConversation()
}

// refreshConversation re-renders the conversation into the viewport
func (m *Model) refreshConversation() {
	if !m.ready {
		return
	}
	content, offsets := m.renderNodes(m.viewport.Width)
	m.nodeOffsets = offsets
	m.viewport.SetContent(content)
	if m.followTail {
		m.viewport.GotoBottom()
	}
}

// scrollToNode brings the selected node into view
func (m *Model) scrollToNode() {
	if m.nodeIndex >= len(m.nodeOffsets) {
		return
	}
	top := m.nodeOffsets[m.nodeIndex]
	if top < m.viewport.YOffset || top >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(top)
	}
}

// Messages

type stateUpdateMsg struct {
	update core.StateUpdate
}

type notificationMsg struct {
	notification *core.Notification
}

type errMsg struct {
	error
}
