package core

import (
	"context"
)

// View is the interface that all UI implementations must satisfy
// The TUI and the line shell both render the same presenter
type View interface {
	// Initialize sets up the view
	Initialize(presenter Presenter) error

	// Run starts the view's main loop (blocking)
	Run(ctx context.Context) error

	// Stop gracefully stops the view
	Stop() error

	// UpdateState updates the view with new state
	UpdateState(update StateUpdate)

	// ShowNotification displays a notification
	ShowNotification(notification *Notification)
}

// Presenter handles the business logic and prepares view models
// It's the bridge between the chat service and the views
type Presenter interface {
	// Initialize loads sessions, agents and the saved tab selection
	Initialize(ctx context.Context) error

	// HandleEvent processes a user event
	HandleEvent(event *Event) error

	// GetViewModel returns the current view model for a view type
	GetViewModel(viewType ViewModelType) (ViewModel, error)

	// Subscribe registers a callback for state updates
	Subscribe(callback func(StateUpdate))

	// SubscribeNotifications registers a callback for notifications
	SubscribeNotifications(callback func(*Notification))

	// Refresh forces a refresh of all data
	Refresh() error

	// Shutdown cleans up resources
	Shutdown() error
}
