package agents

import "strings"

// AgenticFlow describes one agent exposed by the chat backend
type AgenticFlow struct {
	Name        string   `json:"name"`
	Nickname    string   `json:"nickname,omitempty"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// DisplayName returns the nickname, falling back to the name
func (f AgenticFlow) DisplayName() string {
	if nick := strings.TrimSpace(f.Nickname); nick != "" {
		return nick
	}
	return f.Name
}

// HasTag reports whether the flow carries the given tag
func (f AgenticFlow) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
