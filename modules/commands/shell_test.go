package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/config"
	"fred-chat/modules/platform/eventbus"
	uicore "fred-chat/modules/ui/core"
)

type fakePresenter struct {
	state    *uicore.AppState
	events   []*uicore.Event
	callback func(uicore.StateUpdate)
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{state: uicore.NewAppState()}
}

func (p *fakePresenter) Initialize(ctx context.Context) error { return nil }

func (p *fakePresenter) HandleEvent(event *uicore.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePresenter) GetViewModel(vt uicore.ViewModelType) (uicore.ViewModel, error) {
	return p.state.GetViewModel(vt), nil
}

func (p *fakePresenter) Subscribe(cb func(uicore.StateUpdate))               { p.callback = cb }
func (p *fakePresenter) SubscribeNotifications(func(*uicore.Notification)) {}
func (p *fakePresenter) Refresh() error                                     { return nil }
func (p *fakePresenter) Shutdown() error                                    { return nil }

func (p *fakePresenter) push(vm uicore.ViewModel) {
	p.callback(uicore.StateUpdate{ViewType: vm.Type(), ViewModel: vm})
}

func chatVM(nodes ...uicore.NodeVM) *uicore.ChatVM {
	return &uicore.ChatVM{
		BaseViewModel: uicore.BaseViewModel{VMType: uicore.VMChat},
		Nodes:         nodes,
	}
}

func turnNode(id, kind, author, content string) uicore.NodeVM {
	return uicore.NodeVM{
		Key:  id,
		Kind: chat.NodeTurn,
		Turn: &uicore.TurnVM{ID: id, Kind: kind, Author: author, Content: content},
	}
}

func newTestShell(t *testing.T) (*Shell, *fakePresenter, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	p := newFakePresenter()
	s := newShell(out, false)
	if err := s.Initialize(p); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, p, out
}

func TestShellPrintsStreamedTurnsOnce(t *testing.T) {
	s, p, out := newTestShell(t)
	s.handleLine(context.Background(), "What is the budget?")

	human := turnNode("h1", "human", "You", "What is the budget?")
	group := uicore.NodeVM{
		Key:     "p1",
		Kind:    chat.NodeGroup,
		Summary: "Search · 2 steps",
		Sections: []uicore.SectionVM{{Task: "Search", Turns: []uicore.TurnVM{
			{ID: "p1", Kind: "assistant", Subtype: "plan", Content: "Look in the finance folder"},
		}}},
	}
	p.push(chatVM(human, group))

	if strings.Contains(out.String(), "What is the budget?") {
		t.Errorf("typed line echoed back:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "[plan] Search: Look in the finance folder") {
		t.Errorf("plan step missing:\n%s", out.String())
	}

	group.Sections[0].Turns = append(group.Sections[0].Turns,
		uicore.TurnVM{ID: "t1", Kind: "assistant", Subtype: "thought", Content: "Two files match"})
	final := turnNode("f1", "assistant", "Fred", "The budget is 1.2M")
	out.Reset()
	p.push(chatVM(human, group, final))

	got := out.String()
	if strings.Contains(got, "[plan]") {
		t.Errorf("plan printed twice:\n%s", got)
	}
	if !strings.Contains(got, "[thought] Search: Two files match") || !strings.Contains(got, "The budget is 1.2M") {
		t.Errorf("new turns missing:\n%s", got)
	}
}

func TestShellDoesNotReprintLoadedHistory(t *testing.T) {
	out := &bytes.Buffer{}
	p := newFakePresenter()
	p.state.Chat = chatVM(turnNode("h1", "human", "You", "old question"), turnNode("f1", "assistant", "Fred", "old answer"))

	s := newShell(out, false)
	if err := s.Initialize(p); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	p.push(chatVM(turnNode("h1", "human", "You", "old question"), turnNode("f1", "assistant", "Fred", "old answer")))

	if out.Len() != 0 {
		t.Errorf("history printed again:\n%s", out.String())
	}

	s.handleLine(context.Background(), "/history")
	if !strings.Contains(out.String(), "old answer") {
		t.Errorf("/history output:\n%s", out.String())
	}
}

func TestShellResolvesSessions(t *testing.T) {
	s, _, _ := newTestShell(t)
	s.sessions = &uicore.SessionsVM{Sessions: []uicore.SessionVM{
		{ID: "4f2a-one"},
		{ID: "4f3b-two"},
		{ID: "9c1b-three"},
	}}

	cases := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "2", want: "4f3b-two"},
		{ref: "9c", want: "9c1b-three"},
		{ref: "4f2a-one", want: "4f2a-one"},
		{ref: "4f", wantErr: true},
		{ref: "zz", wantErr: true},
	}
	for _, tc := range cases {
		got, err := s.resolveSession([]string{tc.ref})
		if tc.wantErr {
			if err == nil {
				t.Errorf("resolveSession(%q) = %q, want an error", tc.ref, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("resolveSession(%q) = %q, %v, want %q", tc.ref, got, err, tc.want)
		}
	}
}

func TestShellSlashCommandsDispatch(t *testing.T) {
	s, p, _ := newTestShell(t)
	s.sessions = &uicore.SessionsVM{Sessions: []uicore.SessionVM{{ID: "s1"}, {ID: "s2"}}}
	s.chat = chatVM(turnNode("h1", "human", "You", "hi"), turnNode("f1", "assistant", "Fred", "hello"))
	ctx := context.Background()

	s.handleLine(ctx, "/open 2")
	s.handleLine(ctx, "/agent Georges")
	s.handleLine(ctx, `/feedback 4 "good sources"`)
	s.handleLine(ctx, "/new")

	want := []uicore.EventType{
		uicore.EventSelectSession,
		uicore.EventSelectAgent,
		uicore.EventFeedback,
		uicore.EventNewConversation,
	}
	var got []uicore.EventType
	for _, e := range p.events {
		got = append(got, e.Type)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if p.events[0].Target != "s2" || p.events[1].Target != "Georges" {
		t.Errorf("targets = %q, %q", p.events[0].Target, p.events[1].Target)
	}
	fb := p.events[2]
	if fb.Target != "f1" || fb.Data["rating"] != "4" || fb.Data["comment"] != "good sources" {
		t.Errorf("feedback event = %+v", fb)
	}
}

func TestShellSendsPendingAttachments(t *testing.T) {
	s, p, _ := newTestShell(t)
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("q3 numbers"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s.handleLine(ctx, "/attach "+path)
	s.handleLine(ctx, "summarize it")

	if len(p.events) != 1 || p.events[0].Type != uicore.EventSendMessage {
		t.Fatalf("events = %+v", p.events)
	}
	in, ok := p.events[0].Value.(chat.Input)
	if !ok {
		t.Fatalf("send value is %T", p.events[0].Value)
	}
	if in.Text != "summarize it" || len(in.Files) != 1 || in.Files[0].Name != "report.txt" {
		t.Errorf("input = %+v", in)
	}
	if len(s.pending) != 0 {
		t.Error("attachments still pending after send")
	}
}

func TestShellUsesSyncSender(t *testing.T) {
	s, p, _ := newTestShell(t)
	var sent []string
	s.send = func(ctx context.Context, in chat.Input) error {
		sent = append(sent, in.Text)
		return nil
	}

	s.handleLine(context.Background(), "hello")
	if len(p.events) != 0 || !reflect.DeepEqual(sent, []string{"hello"}) {
		t.Errorf("events = %v, sent = %v", p.events, sent)
	}
}

func TestParseCommandLine(t *testing.T) {
	got := parseCommandLine(`feedback 2 "sources were 'old'" now`)
	want := []string{"feedback", "2", "sources were 'old'", "now"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseCommandLine = %q, want %q", got, want)
	}
}

func TestShellReplaysNotifications(t *testing.T) {
	s, _, out := newTestShell(t)
	s.events = eventbus.NewBus()
	s.events.Publish(eventbus.NewNotification(eventbus.LevelInfo, "Uploaded %s", "a.pdf").WithSource("chat"))
	s.events.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated))
	s.events.Publish(eventbus.NewNotification(eventbus.LevelError, "Socket closed"))

	s.handleLine(context.Background(), "/notifications")
	got := out.String()
	if !strings.Contains(got, "Uploaded a.pdf  (chat)") || !strings.Contains(got, "Socket closed") {
		t.Errorf("/notifications output:\n%s", got)
	}
	if strings.Index(got, "Uploaded") > strings.Index(got, "Socket closed") {
		t.Errorf("notifications out of order:\n%s", got)
	}

	out.Reset()
	s.handleLine(context.Background(), "/notifications 1")
	if strings.Contains(out.String(), "Uploaded") || !strings.Contains(out.String(), "Socket closed") {
		t.Errorf("/notifications 1 output:\n%s", out.String())
	}

	out.Reset()
	s.handleLine(context.Background(), "/events 1")
	if !strings.Contains(out.String(), `"type":"notification"`) {
		t.Errorf("/events output:\n%s", out.String())
	}
}

func TestNewLoggerVerboseLowersLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fred-chat.log")
	verboseLog = true
	defer func() { verboseLog = false }()

	log, closer := newLogger(&config.LoggerConfig{Level: "error", FilePath: path})
	if closer == nil {
		t.Fatal("expected the log file to be opened")
	}
	log.Debug("dialing %s", "ws://fred")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "DEBUG: [fred-chat] dialing ws://fred") {
		t.Errorf("log file = %q", data)
	}
}
