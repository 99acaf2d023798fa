package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/state"
)

type memBackend struct {
	mu       sync.Mutex
	sessions []chat.Session
	history  map[string][]chat.Turn
	listErr  error
	feedback []chat.Feedback
}

func (b *memBackend) ListSessions(ctx context.Context) ([]chat.Session, error) {
	return b.sessions, b.listErr
}

func (b *memBackend) DeleteSession(ctx context.Context, id string) error { return nil }

func (b *memBackend) History(ctx context.Context, id string) ([]chat.Turn, error) {
	return b.history[id], nil
}

func (b *memBackend) Upload(ctx context.Context, req chat.UploadRequest) error { return nil }

func (b *memBackend) Transcribe(ctx context.Context, clip chat.AudioClip) (string, error) {
	return "", nil
}

func (b *memBackend) Feedback(ctx context.Context, fb chat.Feedback) error {
	b.mu.Lock()
	b.feedback = append(b.feedback, fb)
	b.mu.Unlock()
	return nil
}

type staticFlows []agents.AgenticFlow

func (f staticFlows) AgenticFlows(ctx context.Context) ([]agents.AgenticFlow, error) {
	return f, nil
}

type memPrefs struct {
	prefs state.Preferences
}

func (m *memPrefs) Preferences() (state.Preferences, error) { return m.prefs, nil }
func (m *memPrefs) SetDarkMode(dark bool) error            { m.prefs.DarkMode = dark; return nil }
func (m *memPrefs) SetSidebarCollapsed(c bool) error       { m.prefs.SidebarCollapsed = c; return nil }

type memTab struct {
	session *chat.Session
	agent   string
}

func (m *memTab) CurrentSession() (*chat.Session, error) { return m.session, nil }
func (m *memTab) CurrentAgent() (string, error)          { return m.agent, nil }

func testBackend() *memBackend {
	return &memBackend{
		sessions: []chat.Session{
			{ID: "s1", Title: "Budget review"},
			{ID: "s2", Title: ""},
		},
		history: map[string][]chat.Turn{
			"s1": {
				{ID: "h1", Kind: chat.KindHuman, Content: "hello", SessionID: "s1"},
				{ID: "p1", Kind: chat.KindAssistant, Subtype: chat.SubtypePlan, Content: "plan", SessionID: "s1",
					Metadata: chat.Metadata{chat.MetaTask: "Search"}},
				{ID: "f1", Kind: chat.KindAssistant, Subtype: chat.SubtypeFinal, Content: "answer", SessionID: "s1"},
			},
		},
	}
}

func newTestPresenter(t *testing.T, backend *memBackend, tab *memTab, prefs *memPrefs) (*ChatPresenter, *chat.Service) {
	t.Helper()
	catalog := agents.NewCatalog()
	service := chat.NewService(chat.Deps{
		Backend:   backend,
		Agents:    catalog,
		UserID:    "u-1",
		AgentName: "Fred",
	})
	deps := PresenterDeps{
		Service: service,
		Catalog: catalog,
		AgentSource: staticFlows{
			{Name: "Fred"},
			{Name: "Georges", Nickname: "Georges the analyst"},
		},
	}
	if prefs != nil {
		deps.Preferences = prefs
	}
	if tab != nil {
		deps.Tab = tab
	}
	p := NewChatPresenter(deps)
	t.Cleanup(func() { p.Shutdown() })
	return p, service
}

func chatVM(t *testing.T, p *ChatPresenter) *ChatVM {
	t.Helper()
	vm, err := p.GetViewModel(VMChat)
	if err != nil {
		t.Fatalf("GetViewModel: %v", err)
	}
	return vm.(*ChatVM)
}

func TestPresenterInitializeRestoresSelection(t *testing.T) {
	tab := &memTab{session: &chat.Session{ID: "s1"}, agent: "Georges"}
	p, service := newTestPresenter(t, testBackend(), tab, &memPrefs{})

	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := service.Agent(); got != "Georges" {
		t.Errorf("agent = %q, want Georges", got)
	}

	vm := chatVM(t, p)
	if vm.SessionID != "s1" || vm.SessionTitle != "Budget review" {
		t.Errorf("session = %q %q", vm.SessionID, vm.SessionTitle)
	}
	if vm.AgentDisplay != "Georges the analyst" {
		t.Errorf("AgentDisplay = %q", vm.AgentDisplay)
	}
	if len(vm.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(vm.Nodes))
	}
	if vm.Nodes[0].Turn == nil || vm.Nodes[0].Turn.Author != "You" {
		t.Errorf("first node = %+v, want the human turn", vm.Nodes[0])
	}
	if vm.Nodes[1].Kind != chat.NodeGroup || vm.Nodes[1].Key != "p1" {
		t.Errorf("second node = %+v, want group keyed p1", vm.Nodes[1])
	}
	if vm.Nodes[1].Summary != "Search · 1 step" {
		t.Errorf("Summary = %q", vm.Nodes[1].Summary)
	}

	raw, _ := p.GetViewModel(VMSessions)
	sessions := raw.(*SessionsVM)
	if sessions.ActiveID != "s1" || len(sessions.Sessions) != 2 {
		t.Fatalf("sessions = %+v", sessions)
	}
	if sessions.Sessions[1].Title != "Untitled s2" {
		t.Errorf("untitled session = %q", sessions.Sessions[1].Title)
	}

	raw, _ = p.GetViewModel(VMAgents)
	if got := raw.(*AgentsVM).Selected; got != "Georges" {
		t.Errorf("selected agent = %q", got)
	}
}

func TestPresenterFallsBackToConfiguredAgent(t *testing.T) {
	p, service := newTestPresenter(t, testBackend(), &memTab{agent: "Gone"}, nil)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := service.Agent(); got != "Fred" {
		t.Errorf("agent = %q, want Fred", got)
	}
}

func TestPresenterToggleGroup(t *testing.T) {
	p, _ := newTestPresenter(t, testBackend(), &memTab{session: &chat.Session{ID: "s1"}}, nil)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	before := chatVM(t, p).Nodes[1].Expanded
	if err := p.HandleEvent(NewEvent(EventToggleGroup).WithTarget("p1")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if after := chatVM(t, p).Nodes[1].Expanded; after == before {
		t.Errorf("Expanded stayed %v", after)
	}

	if err := p.HandleEvent(NewEvent(EventToggleGroup).WithTarget("nope")); err == nil {
		t.Error("toggling an unknown node should fail")
	}

	// A session switch forgets manual choices
	if err := p.HandleEvent(NewEvent(EventNewConversation)); err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if n := len(p.GetState().ExpandedOverrides()); n != 0 {
		t.Errorf("%d overrides survived the switch", n)
	}
	vm := chatVM(t, p)
	if vm.SessionID != "" || len(vm.Nodes) != 0 {
		t.Errorf("new conversation vm = %+v", vm)
	}
}

func TestPresenterForwardsNotifications(t *testing.T) {
	backend := testBackend()
	backend.listErr = errors.New("boom")
	p, _ := newTestPresenter(t, backend, nil, nil)

	var mu sync.Mutex
	var got []*Notification
	p.SubscribeNotifications(func(n *Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Type != NotifyError {
		t.Fatalf("notifications = %+v, want one error", got)
	}
	if recent := p.GetState().RecentNotifications(5); len(recent) != 1 {
		t.Errorf("state kept %d notifications", len(recent))
	}
}

func TestPresenterTogglePreferences(t *testing.T) {
	prefs := &memPrefs{prefs: state.Preferences{SidebarCollapsed: true}}
	p, _ := newTestPresenter(t, testBackend(), nil, prefs)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var updates []ViewModelType
	p.Subscribe(func(u StateUpdate) { updates = append(updates, u.ViewType) })

	if err := p.HandleEvent(NewEvent(EventToggleDarkMode)); err != nil {
		t.Fatalf("toggle dark: %v", err)
	}
	if err := p.HandleEvent(NewEvent(EventToggleSidebar)); err != nil {
		t.Fatalf("toggle sidebar: %v", err)
	}

	if !prefs.prefs.DarkMode || prefs.prefs.SidebarCollapsed {
		t.Errorf("persisted prefs = %+v", prefs.prefs)
	}
	raw, _ := p.GetViewModel(VMPreferences)
	vm := raw.(*PreferencesVM)
	if !vm.DarkMode || vm.SidebarCollapsed {
		t.Errorf("vm = %+v", vm)
	}
	if len(updates) != 2 || updates[0] != VMPreferences {
		t.Errorf("updates = %v", updates)
	}
}

func TestPresenterSelectAgent(t *testing.T) {
	p, service := newTestPresenter(t, testBackend(), nil, nil)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := p.HandleEvent(NewEvent(EventSelectAgent).WithTarget("Georges")); err != nil {
		t.Fatalf("select agent: %v", err)
	}
	if service.Agent() != "Georges" {
		t.Errorf("agent = %q", service.Agent())
	}
	if err := p.HandleEvent(NewEvent(EventSelectAgent).WithTarget("Nobody")); err == nil {
		t.Error("unknown agent should fail")
	}
}

func TestPresenterFeedback(t *testing.T) {
	backend := testBackend()
	p, _ := newTestPresenter(t, backend, &memTab{session: &chat.Session{ID: "s1"}}, nil)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := p.HandleEvent(FeedbackEvent("f1", "x", "")); err == nil {
		t.Error("non numeric rating should fail")
	}
	if err := p.HandleEvent(FeedbackEvent("f1", "4", "useful")); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		backend.mu.Lock()
		n := len(backend.feedback)
		backend.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.feedback) != 1 {
		t.Fatalf("got %d feedback calls", len(backend.feedback))
	}
	fb := backend.feedback[0]
	if fb.Rating != 4 || fb.SessionID != "s1" || fb.MessageID != "f1" {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestPresenterRejectsUnknownEvent(t *testing.T) {
	p, _ := newTestPresenter(t, testBackend(), nil, nil)
	if err := p.HandleEvent(NewEvent("bogus")); err == nil {
		t.Error("unknown event should fail")
	}
	if err := p.HandleEvent(NewEvent(EventSendMessage).WithValue(42)); err == nil {
		t.Error("send with an int payload should fail")
	}
}
