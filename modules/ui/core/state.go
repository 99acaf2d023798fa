package core

import (
	"sync"
	"time"
)

const maxNotifications = 50

// AppState represents the state shared by the views
type AppState struct {
	mu sync.RWMutex

	// Current view
	CurrentView ViewModelType

	// View models (cached)
	Chat        *ChatVM
	Sessions    *SessionsVM
	Agents      *AgentsVM
	Preferences *PreferencesVM

	// Group expansion chosen by the user, by node key
	Expanded map[string]bool

	LastRefresh   time.Time
	Notifications []*Notification
}

// NewAppState creates a new application state
func NewAppState() *AppState {
	return &AppState{
		CurrentView:   VMChat,
		Chat:          &ChatVM{BaseViewModel: BaseViewModel{VMType: VMChat}},
		Sessions:      &SessionsVM{BaseViewModel: BaseViewModel{VMType: VMSessions}},
		Agents:        &AgentsVM{BaseViewModel: BaseViewModel{VMType: VMAgents}},
		Preferences:   &PreferencesVM{BaseViewModel: BaseViewModel{VMType: VMPreferences}},
		Expanded:      make(map[string]bool),
		Notifications: make([]*Notification, 0),
	}
}

// GetViewModel returns a cached view model
func (s *AppState) GetViewModel(viewType ViewModelType) ViewModel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch viewType {
	case VMChat:
		return s.Chat
	case VMSessions:
		return s.Sessions
	case VMAgents:
		return s.Agents
	case VMPreferences:
		return s.Preferences
	}
	return nil
}

// UpdateViewModel replaces a cached view model
func (s *AppState) UpdateViewModel(vm ViewModel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := vm.(type) {
	case *ChatVM:
		s.Chat = v
	case *SessionsVM:
		s.Sessions = v
	case *AgentsVM:
		s.Agents = v
	case *PreferencesVM:
		s.Preferences = v
	}
}

// ToggleExpanded flips a group from its current state and returns the new one
func (s *AppState) ToggleExpanded(key string, current bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Expanded[key] = !current
	return !current
}

// ExpandedOverrides returns a copy of the user choices
func (s *AppState) ExpandedOverrides() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.Expanded))
	for k, v := range s.Expanded {
		out[k] = v
	}
	return out
}

// ResetExpanded forgets the user choices, used on session switch
func (s *AppState) ResetExpanded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Expanded = make(map[string]bool)
}

// AddNotification adds a notification
func (s *AppState) AddNotification(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Notifications = append(s.Notifications, n)
	if len(s.Notifications) > maxNotifications {
		s.Notifications = s.Notifications[len(s.Notifications)-maxNotifications:]
	}
}

// RecentNotifications returns the last n notifications
func (s *AppState) RecentNotifications(n int) []*Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.Notifications) {
		n = len(s.Notifications)
	}
	out := make([]*Notification, n)
	copy(out, s.Notifications[len(s.Notifications)-n:])
	return out
}
