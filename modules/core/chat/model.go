package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// TurnKind identifies who produced a turn
type TurnKind string

const (
	KindHuman      TurnKind = "human"
	KindAssistant  TurnKind = "assistant"
	KindSystem     TurnKind = "system"
	KindToolResult TurnKind = "tool-result"
)

// TurnSubtype refines assistant turns
type TurnSubtype string

const (
	SubtypeNone       TurnSubtype = ""
	SubtypePlan       TurnSubtype = "plan"
	SubtypeThought    TurnSubtype = "thought"
	SubtypeExecution  TurnSubtype = "execution"
	SubtypeToolResult TurnSubtype = "tool_result"
	SubtypeFinal      TurnSubtype = "final"
)

// Metadata keys understood by the client
const (
	MetaModel      = "model"
	MetaTokenUsage = "token_usage"
	MetaSources    = "sources"
	MetaTask       = "task"
	MetaAgentName  = "agent_name"
)

// Metadata is the open bag attached to a turn
type Metadata map[string]any

// Turn is one message of a chat session
type Turn struct {
	ID        string      `json:"id"`
	Kind      TurnKind    `json:"kind"`
	Subtype   TurnSubtype `json:"subtype,omitempty"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"session_id"`
	Rank      int         `json:"rank"`
	Metadata  Metadata    `json:"metadata,omitempty"`
}

// TokenUsage holds model token counters
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Source is a document citation returned with a turn
type Source struct {
	DocumentUID string  `json:"document_uid"`
	FileName    string  `json:"file_name"`
	Title       string  `json:"title,omitempty"`
	Content     string  `json:"content,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// Session is a persisted conversation thread
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsHuman returns true for user-authored turns
func (t Turn) IsHuman() bool {
	return t.Kind == KindHuman
}

// IsBlank returns true when the turn has nothing to display
func (t Turn) IsBlank() bool {
	return strings.TrimSpace(t.Content) == ""
}

// TaskName returns the originating task name, empty if unknown
func (t Turn) TaskName() string {
	return t.Metadata.String(MetaTask)
}

// AgentName returns the originating logical agent, empty if unknown
func (t Turn) AgentName() string {
	return t.Metadata.String(MetaAgentName)
}

// Model returns the model name, empty if unknown
func (t Turn) Model() string {
	return t.Metadata.String(MetaModel)
}

// String returns a string value from the bag
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// TokenUsage decodes the token counters, nil when absent
func (m Metadata) TokenUsage() *TokenUsage {
	var usage TokenUsage
	if !m.decode(MetaTokenUsage, &usage) {
		return nil
	}
	return &usage
}

// Sources decodes the citations, nil when absent
func (m Metadata) Sources() []Source {
	var sources []Source
	if !m.decode(MetaSources, &sources) {
		return nil
	}
	return sources
}

// decode round-trips a bag entry through JSON into target
func (m Metadata) decode(key string, target any) bool {
	if m == nil {
		return false
	}
	raw, ok := m[key]
	if !ok || raw == nil {
		return false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}
