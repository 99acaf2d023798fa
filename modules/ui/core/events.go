package core

import (
	"fred-chat/modules/platform/eventbus"
)

// EventType identifies the type of UI event
type EventType string

const (
	// Navigation events
	EventNavigate EventType = "navigate"
	EventRefresh  EventType = "refresh"
	EventQuit     EventType = "quit"

	// Chat events
	EventSendMessage     EventType = "send_message"
	EventSelectSession   EventType = "select_session"
	EventNewConversation EventType = "new_conversation"
	EventDeleteSession   EventType = "delete_session"
	EventSelectAgent     EventType = "select_agent"
	EventFeedback        EventType = "feedback"

	// UI state events
	EventToggleGroup    EventType = "toggle_group"
	EventToggleDarkMode EventType = "toggle_dark_mode"
	EventToggleSidebar  EventType = "toggle_sidebar"
)

// Event represents a user action in the UI
type Event struct {
	Type   EventType         `json:"type"`
	Target string            `json:"target,omitempty"` // Session, agent or node key
	Value  interface{}       `json:"value,omitempty"`  // Generic payload
	Data   map[string]string `json:"data,omitempty"`   // Additional data
}

// NewEvent creates a new event
func NewEvent(eventType EventType) *Event {
	return &Event{
		Type: eventType,
		Data: make(map[string]string),
	}
}

// WithTarget sets the target
func (e *Event) WithTarget(target string) *Event {
	e.Target = target
	return e
}

// WithValue sets the value
func (e *Event) WithValue(value interface{}) *Event {
	e.Value = value
	return e
}

// WithData adds data key-value pairs
func (e *Event) WithData(key, value string) *Event {
	if e.Data == nil {
		e.Data = make(map[string]string)
	}
	e.Data[key] = value
	return e
}

// ============================================
// Notification events (from presenter to view)
// ============================================

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification represents a message to display to the user
type Notification struct {
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Duration    int              `json:"duration"` // seconds, 0 = persistent
	Dismissable bool             `json:"dismissable"`
}

// NewNotification creates a new notification
func NewNotification(ntype NotificationType, title, message string) *Notification {
	return &Notification{
		Type:        ntype,
		Title:       title,
		Message:     message,
		Duration:    5,
		Dismissable: true,
	}
}

// NotificationFromEvent converts a toast published on the bus
func NotificationFromEvent(e *eventbus.Event) *Notification {
	ntype := NotificationType(e.String("level"))
	title := "Info"
	switch ntype {
	case NotifySuccess:
		title = "Done"
	case NotifyWarning:
		title = "Warning"
	case NotifyError:
		title = "Error"
	default:
		ntype = NotifyInfo
	}

	n := NewNotification(ntype, title, e.String("message"))
	if ntype == NotifyError {
		n.Duration = 10
	}
	return n
}

// ============================================
// State update events (from presenter to view)
// ============================================

// StateUpdate represents a state change notification
type StateUpdate struct {
	ViewType  ViewModelType `json:"view_type"`
	ViewModel ViewModel     `json:"view_model"`
}

// ============================================
// Common event helpers
// ============================================

// SendEvent creates a send event for text typed by the user
func SendEvent(text string) *Event {
	return NewEvent(EventSendMessage).WithValue(text)
}

// SelectSessionEvent creates a session selection event
func SelectSessionEvent(sessionID string) *Event {
	return NewEvent(EventSelectSession).WithTarget(sessionID)
}

// FeedbackEvent creates a feedback event for a turn of the active session
func FeedbackEvent(messageID, rating, comment string) *Event {
	return NewEvent(EventFeedback).
		WithTarget(messageID).
		WithData("rating", rating).
		WithData("comment", comment)
}
