package core

import (
	"fmt"
	"strings"
	"time"

	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
)

// ViewModelType identifies the type of view model
type ViewModelType string

const (
	VMChat        ViewModelType = "chat"
	VMSessions    ViewModelType = "sessions"
	VMAgents      ViewModelType = "agents"
	VMPreferences ViewModelType = "preferences"
)

// ViewModel is the base interface for all view models
type ViewModel interface {
	Type() ViewModelType
	LastUpdated() time.Time
}

// BaseViewModel provides common fields for all view models
type BaseViewModel struct {
	VMType    ViewModelType `json:"type"`
	UpdatedAt time.Time     `json:"updated_at"`
	Error     string        `json:"error,omitempty"`
	IsLoading bool          `json:"is_loading"`
}

func (vm *BaseViewModel) Type() ViewModelType    { return vm.VMType }
func (vm *BaseViewModel) LastUpdated() time.Time { return vm.UpdatedAt }

// ChatVM is the view model of the conversation pane
type ChatVM struct {
	BaseViewModel
	SessionID    string   `json:"session_id,omitempty"`
	SessionTitle string   `json:"session_title"`
	Nodes        []NodeVM `json:"nodes"`
	Waiting      bool     `json:"waiting"`
	Agent        string   `json:"agent"`
	AgentDisplay string   `json:"agent_display"`
	UserID       string   `json:"user_id"`
	TurnCount    int      `json:"turn_count"`
}

// NodeVM is one entry of the rendered conversation
type NodeVM struct {
	Key      string        `json:"key"` // ID of the first member turn
	Kind     chat.NodeKind `json:"kind"`
	Agent    string        `json:"agent,omitempty"`
	Expanded bool          `json:"expanded"`
	Turn     *TurnVM       `json:"turn,omitempty"`
	Sections []SectionVM   `json:"sections,omitempty"`
	Summary  string        `json:"summary,omitempty"`
}

// SectionVM lists the turns of one task inside a group
type SectionVM struct {
	Task  string   `json:"task"`
	Turns []TurnVM `json:"turns"`
}

// TurnVM is a displayable turn
type TurnVM struct {
	ID      string     `json:"id"`
	Author  string     `json:"author"`
	Kind    string     `json:"kind"`
	Subtype string     `json:"subtype,omitempty"`
	Content string     `json:"content"`
	Time    string     `json:"time,omitempty"`
	Model   string     `json:"model,omitempty"`
	Tokens  string     `json:"tokens,omitempty"`
	Sources []SourceVM `json:"sources,omitempty"`
}

// SourceVM is a citation shown under an answer
type SourceVM struct {
	Title string  `json:"title"`
	File  string  `json:"file"`
	Score float64 `json:"score,omitempty"`
}

// SessionsVM is the view model of the session sidebar
type SessionsVM struct {
	BaseViewModel
	Sessions []SessionVM `json:"sessions"`
	ActiveID string      `json:"active_id,omitempty"`
}

// SessionVM is one sidebar entry
type SessionVM struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated string `json:"updated"`
	Active  bool   `json:"active"`
}

// AgentsVM is the view model of the agent picker
type AgentsVM struct {
	BaseViewModel
	Agents   []AgentVM `json:"agents"`
	Selected string    `json:"selected"`
}

// AgentVM is one selectable agent
type AgentVM struct {
	Name        string   `json:"name"`
	Display     string   `json:"display"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Selected    bool     `json:"selected"`
}

// PreferencesVM mirrors the persisted preferences
type PreferencesVM struct {
	BaseViewModel
	DarkMode         bool `json:"dark_mode"`
	SidebarCollapsed bool `json:"sidebar_collapsed"`
}

// NewChatVM builds the conversation view model.
// overrides holds the groups the user expanded or collapsed by hand.
func NewChatVM(snap chat.Snapshot, lookup chat.AgentLookup, overrides map[string]bool) *ChatVM {
	vm := &ChatVM{
		BaseViewModel: BaseViewModel{VMType: VMChat, UpdatedAt: time.Now()},
		Waiting:       snap.Waiting,
		Agent:         snap.Agent,
		AgentDisplay:  displayName(lookup, snap.Agent),
		UserID:        snap.UserID,
		TurnCount:     len(snap.Turns),
		SessionTitle:  "New conversation",
	}
	if snap.Active != nil {
		vm.SessionID = snap.Active.ID
		vm.SessionTitle = sessionTitle(*snap.Active)
	}

	vm.Nodes = make([]NodeVM, 0, len(snap.Nodes))
	for _, node := range snap.Nodes {
		nvm := NodeVM{
			Key:      nodeKey(node),
			Kind:     node.Kind,
			Agent:    node.Agent,
			Expanded: node.Expanded,
		}
		if expanded, ok := overrides[nvm.Key]; ok {
			nvm.Expanded = expanded
		}

		if node.Kind == chat.NodeTurn && node.Turn != nil {
			t := newTurnVM(*node.Turn, node.Agent)
			nvm.Turn = &t
		} else {
			steps := 0
			for _, section := range node.Tasks {
				svm := SectionVM{Task: section.Task}
				for _, turn := range section.Turns {
					svm.Turns = append(svm.Turns, newTurnVM(turn, node.Agent))
				}
				steps += len(section.Turns)
				nvm.Sections = append(nvm.Sections, svm)
			}
			nvm.Summary = groupSummary(node.Key(), steps)
		}
		vm.Nodes = append(vm.Nodes, nvm)
	}
	return vm
}

// NewSessionsVM builds the sidebar view model
func NewSessionsVM(sessions []chat.Session, active *chat.Session) *SessionsVM {
	vm := &SessionsVM{
		BaseViewModel: BaseViewModel{VMType: VMSessions, UpdatedAt: time.Now()},
		Sessions:      make([]SessionVM, 0, len(sessions)),
	}
	if active != nil {
		vm.ActiveID = active.ID
	}
	for _, s := range sessions {
		vm.Sessions = append(vm.Sessions, SessionVM{
			ID:      s.ID,
			Title:   sessionTitle(s),
			Updated: FormatTime(s.UpdatedAt),
			Active:  s.ID == vm.ActiveID,
		})
	}
	return vm
}

// NewAgentsVM builds the agent picker view model
func NewAgentsVM(flows []agents.AgenticFlow, selected string) *AgentsVM {
	vm := &AgentsVM{
		BaseViewModel: BaseViewModel{VMType: VMAgents, UpdatedAt: time.Now()},
		Agents:        make([]AgentVM, 0, len(flows)),
		Selected:      selected,
	}
	for _, f := range flows {
		vm.Agents = append(vm.Agents, AgentVM{
			Name:        f.Name,
			Display:     f.DisplayName(),
			Role:        f.Role,
			Description: f.Description,
			Tags:        f.Tags,
			Selected:    f.Name == selected,
		})
	}
	return vm
}

func newTurnVM(turn chat.Turn, agent string) TurnVM {
	vm := TurnVM{
		ID:      turn.ID,
		Author:  agent,
		Kind:    string(turn.Kind),
		Subtype: string(turn.Subtype),
		Content: turn.Content,
		Time:    FormatTime(turn.Timestamp),
		Model:   turn.Model(),
	}
	if turn.IsHuman() {
		vm.Author = "You"
	} else if vm.Author == "" {
		vm.Author = "Assistant"
	}
	if usage := turn.Metadata.TokenUsage(); usage != nil {
		vm.Tokens = fmt.Sprintf("%d in / %d out", usage.InputTokens, usage.OutputTokens)
	}
	for _, src := range turn.Metadata.Sources() {
		title := src.Title
		if title == "" {
			title = src.FileName
		}
		vm.Sources = append(vm.Sources, SourceVM{Title: title, File: src.FileName, Score: src.Score})
	}
	return vm
}

func nodeKey(node chat.RenderNode) string {
	members := node.Members()
	if len(members) == 0 {
		return ""
	}
	return members[0].ID
}

func groupSummary(task string, steps int) string {
	if steps == 1 {
		return task + " · 1 step"
	}
	return fmt.Sprintf("%s · %d steps", task, steps)
}

func sessionTitle(s chat.Session) string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	return "Untitled " + shortID(s.ID)
}

func displayName(lookup chat.AgentLookup, name string) string {
	if lookup == nil || name == "" {
		return name
	}
	return lookup.DisplayName(name)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatTime renders a timestamp for lists, empty for the zero time
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("2006-01-02 15:04")
}
