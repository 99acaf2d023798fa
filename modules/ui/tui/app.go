package tui

import (
	"context"
	"sync"

	"fred-chat/modules/ui/core"

	tea "github.com/charmbracelet/bubbletea"
)

// TUIView implements the core.View interface for Bubble Tea TUI
type TUIView struct {
	mu             sync.RWMutex
	presenter      core.Presenter
	program        *tea.Program
	model          *Model
	ctx            context.Context
	cancel         context.CancelFunc
	pendingUpdates []core.StateUpdate // Buffered state updates if received before program starts
	pendingToasts  []*core.Notification
}

// NewTUIView creates a new TUI view
func NewTUIView() *TUIView {
	return &TUIView{}
}

// Initialize sets up the view with a presenter
func (v *TUIView) Initialize(presenter core.Presenter) error {
	v.mu.Lock()
	v.presenter = presenter
	v.model = NewModel(presenter)
	v.mu.Unlock()

	// Subscribe to state updates (must be outside lock - callback may call UpdateState)
	presenter.Subscribe(func(update core.StateUpdate) {
		v.UpdateState(update)
	})

	// Subscribe to notifications
	presenter.SubscribeNotifications(func(n *core.Notification) {
		v.ShowNotification(n)
	})

	return nil
}

// Run starts the TUI main loop (blocking)
func (v *TUIView) Run(ctx context.Context) error {
	v.mu.Lock()
	v.ctx, v.cancel = context.WithCancel(ctx)
	pendingUpdates := v.pendingUpdates
	v.pendingUpdates = nil
	pendingToasts := v.pendingToasts
	v.pendingToasts = nil

	v.program = tea.NewProgram(
		v.model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	program := v.program
	v.mu.Unlock()

	// Channel to receive final model and error from program.Run()
	type runResult struct {
		model tea.Model
		err   error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		finalModel, err := program.Run()
		resultCh <- runResult{model: finalModel, err: err}
	}()

	// Apply pending state updates after program starts
	for _, update := range pendingUpdates {
		program.Send(stateUpdateMsg{update: update})
	}
	for _, n := range pendingToasts {
		program.Send(notificationMsg{notification: n})
	}

	// Wait for either context cancellation or program exit
	select {
	case <-v.ctx.Done():
		program.Quit()
		return v.ctx.Err()
	case result := <-resultCh:
		// Get the final model state from Bubble Tea (it works with copies)
		v.mu.Lock()
		if finalModel, ok := result.model.(Model); ok {
			v.model = &finalModel
		} else if finalModelPtr, ok := result.model.(*Model); ok {
			v.model = finalModelPtr
		}
		v.program = nil
		v.mu.Unlock()
		return result.err
	}
}

// Stop gracefully stops the TUI
func (v *TUIView) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	if v.program != nil {
		v.program.Quit()
	}
	return nil
}

// UpdateState updates the view with new state from the presenter
func (v *TUIView) UpdateState(update core.StateUpdate) {
	v.mu.Lock()
	program := v.program
	if program == nil {
		// Buffer if program not started yet
		v.pendingUpdates = append(v.pendingUpdates, update)
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	program.Send(stateUpdateMsg{update: update})
}

// ShowNotification displays a notification
func (v *TUIView) ShowNotification(notification *core.Notification) {
	v.mu.Lock()
	program := v.program
	if program == nil {
		v.pendingToasts = append(v.pendingToasts, notification)
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	program.Send(notificationMsg{notification: notification})
}
