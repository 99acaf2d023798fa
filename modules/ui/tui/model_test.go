package tui

import (
	"context"
	"strings"
	"testing"

	"fred-chat/modules/core/chat"
	"fred-chat/modules/ui/core"

	tea "github.com/charmbracelet/bubbletea"
)

type recordingPresenter struct {
	events []*core.Event
	state  *core.AppState
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{state: core.NewAppState()}
}

func (p *recordingPresenter) Initialize(ctx context.Context) error { return nil }

func (p *recordingPresenter) HandleEvent(event *core.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPresenter) GetViewModel(vt core.ViewModelType) (core.ViewModel, error) {
	return p.state.GetViewModel(vt), nil
}

func (p *recordingPresenter) Subscribe(func(core.StateUpdate))               {}
func (p *recordingPresenter) SubscribeNotifications(func(*core.Notification)) {}
func (p *recordingPresenter) Refresh() error                                  { return nil }
func (p *recordingPresenter) Shutdown() error                                 { return nil }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, p core.Presenter) Model {
	t.Helper()
	m := NewModel(p)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestEnterSendsInput(t *testing.T) {
	p := newRecordingPresenter()
	m := sized(t, p)
	m.input.SetValue("  hello fred  ")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	cmd()

	if len(p.events) != 1 || p.events[0].Type != core.EventSendMessage {
		t.Fatalf("events = %+v", p.events)
	}
	if got := p.events[0].Value; got != "hello fred" {
		t.Errorf("sent %q", got)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	p := newRecordingPresenter()
	m := sized(t, p)
	m.input.SetValue("   ")

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		cmd()
	}
	if len(p.events) != 0 {
		t.Errorf("blank input dispatched %+v", p.events)
	}
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	p := newRecordingPresenter()
	p.state.Sessions = &core.SessionsVM{
		BaseViewModel: core.BaseViewModel{VMType: core.VMSessions},
		Sessions: []core.SessionVM{
			{ID: "s1", Title: "First"},
			{ID: "s2", Title: "Second"},
		},
	}
	m := sized(t, p)
	m.setFocus(FocusSidebar)

	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("x"))
	if !m.showDialog {
		t.Fatal("x should open the confirmation dialog")
	}
	m, cmd := press(t, m, runes("n"))
	if m.showDialog {
		t.Error("n should close the dialog")
	}
	if cmd != nil {
		t.Error("declining should not dispatch")
	}

	m, _ = press(t, m, runes("x"))
	_, cmd = press(t, m, runes("y"))
	if cmd == nil {
		t.Fatal("confirming produced no command")
	}
	cmd()
	if len(p.events) != 1 || p.events[0].Type != core.EventDeleteSession || p.events[0].Target != "s2" {
		t.Fatalf("events = %+v", p.events)
	}
}

func TestRateSelectedAnswer(t *testing.T) {
	p := newRecordingPresenter()
	m := sized(t, p)
	m.handleStateUpdate(core.StateUpdate{ViewType: core.VMChat, ViewModel: &core.ChatVM{
		BaseViewModel: core.BaseViewModel{VMType: core.VMChat},
		Nodes: []core.NodeVM{
			{Key: "h1", Kind: chat.NodeTurn, Turn: &core.TurnVM{ID: "h1", Kind: "human", Author: "You", Content: "hi"}},
			{Key: "f1", Kind: chat.NodeTurn, Turn: &core.TurnVM{ID: "f1", Kind: "assistant", Author: "Fred", Content: "hello"}},
		},
	}})
	m.setFocus(FocusConversation)

	if m.nodeIndex != 1 {
		t.Fatalf("nodeIndex = %d, want the last node", m.nodeIndex)
	}
	_, cmd := press(t, m, runes("4"))
	if cmd == nil {
		t.Fatal("rating produced no command")
	}
	cmd()
	if len(p.events) != 1 || p.events[0].Target != "f1" || p.events[0].Data["rating"] != "4" {
		t.Fatalf("events = %+v", p.events)
	}

	// Human turns cannot be rated
	m, _ = press(t, m, runes("k"))
	if _, cmd := press(t, m, runes("5")); cmd != nil {
		t.Error("rating a human turn should not dispatch")
	}
}

func TestRenderNodesHonoursExpansion(t *testing.T) {
	m := sized(t, newRecordingPresenter())
	group := core.NodeVM{
		Key:     "p1",
		Kind:    chat.NodeGroup,
		Summary: "Search · 2 steps",
		Sections: []core.SectionVM{{Task: "Search", Turns: []core.TurnVM{
			{ID: "p1", Kind: "assistant", Subtype: "plan", Content: "plan"},
			{ID: "t1", Kind: "assistant", Subtype: "thought", Content: "thinking"},
		}}},
	}
	m.state.Chat = &core.ChatVM{
		BaseViewModel: core.BaseViewModel{VMType: core.VMChat},
		Nodes: []core.NodeVM{
			{Key: "h1", Kind: chat.NodeTurn, Turn: &core.TurnVM{ID: "h1", Kind: "human", Author: "You", Content: "question"}},
			group,
		},
	}

	content, offsets := m.renderNodes(80)
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] <= offsets[0] {
		t.Fatalf("offsets = %v", offsets)
	}
	if !strings.Contains(content, "Search · 2 steps") {
		t.Error("group summary missing")
	}
	if strings.Contains(content, "[thought]") {
		t.Error("collapsed group shows its members")
	}

	m.state.Chat.Nodes[1].Expanded = true
	content, _ = m.renderNodes(80)
	if !strings.Contains(content, "[thought]") {
		t.Error("expanded group hides its members")
	}
}

func TestToggleGroupDispatchesKey(t *testing.T) {
	p := newRecordingPresenter()
	m := sized(t, p)
	m.handleStateUpdate(core.StateUpdate{ViewType: core.VMChat, ViewModel: &core.ChatVM{
		BaseViewModel: core.BaseViewModel{VMType: core.VMChat},
		Nodes:         []core.NodeVM{{Key: "p1", Kind: chat.NodeGroup, Summary: "Plan · 1 step"}},
	}})
	m.setFocus(FocusConversation)

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	if cmd == nil {
		t.Fatal("space produced no command")
	}
	cmd()
	if len(p.events) != 1 || p.events[0].Type != core.EventToggleGroup || p.events[0].Target != "p1" {
		t.Fatalf("events = %+v", p.events)
	}
}
