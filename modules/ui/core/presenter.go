package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/eventbus"
	"fred-chat/modules/platform/logger"
	"fred-chat/modules/platform/state"
)

// AgentSource lists the agents exposed by the backend
type AgentSource interface {
	AgenticFlows(ctx context.Context) ([]agents.AgenticFlow, error)
}

// PreferenceStore persists cross-tab preferences
type PreferenceStore interface {
	Preferences() (state.Preferences, error)
	SetDarkMode(dark bool) error
	SetSidebarCollapsed(collapsed bool) error
}

// TabStore reads the selection saved for the current tab
type TabStore interface {
	CurrentSession() (*chat.Session, error)
	CurrentAgent() (string, error)
}

// PresenterDeps are the collaborators of a ChatPresenter.
// Only Service and Catalog are required.
type PresenterDeps struct {
	Service     *chat.Service
	Catalog     *agents.Catalog
	AgentSource AgentSource
	Preferences PreferenceStore
	Tab         TabStore
	Logger      *logger.Logger
}

// ChatPresenter is the presenter of the chat views
type ChatPresenter struct {
	mu sync.RWMutex

	// Services
	service     *chat.Service
	catalog     *agents.Catalog
	agentSource AgentSource
	prefs       PreferenceStore
	tab         TabStore
	log         *logger.Logger

	// State
	state *AppState
	subID int

	// Callbacks
	stateCallbacks        []func(StateUpdate)
	notificationCallbacks []func(*Notification)

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChatPresenter creates a presenter over a chat service
func NewChatPresenter(deps PresenterDeps) *ChatPresenter {
	if deps.Catalog == nil {
		deps.Catalog = agents.NewCatalog()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &ChatPresenter{
		service:               deps.Service,
		catalog:               deps.Catalog,
		agentSource:           deps.AgentSource,
		prefs:                 deps.Preferences,
		tab:                   deps.Tab,
		log:                   deps.Logger,
		state:                 NewAppState(),
		stateCallbacks:        make([]func(StateUpdate), 0),
		notificationCallbacks: make([]func(*Notification), 0),
		ctx:                   context.Background(),
	}
}

// Initialize loads agents, sessions and the saved tab selection
func (p *ChatPresenter) Initialize(ctx context.Context) error {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.subID = p.service.Bus().Subscribe(nil, p.onBusEvent)

	p.loadPreferences()
	p.loadAgents()
	p.restoreAgent()

	if err := p.service.Start(p.context()); err != nil {
		// Already surfaced as a toast, the chat still works without history
		p.log.Warn("session list unavailable: %v", err)
	}
	p.restoreSession()

	p.refreshAll()
	return nil
}

// HandleEvent processes a user event
func (p *ChatPresenter) HandleEvent(event *Event) error {
	switch event.Type {
	case EventNavigate:
		p.state.mu.Lock()
		p.state.CurrentView = ViewModelType(event.Target)
		p.state.mu.Unlock()
		return nil
	case EventRefresh:
		return p.Refresh()
	case EventQuit:
		return p.Shutdown()
	case EventSendMessage:
		return p.handleSend(event)
	case EventSelectSession:
		return p.handleSelectSession(event)
	case EventNewConversation:
		p.service.NewConversation()
		return nil
	case EventDeleteSession:
		return p.handleDeleteSession(event)
	case EventSelectAgent:
		return p.handleSelectAgent(event)
	case EventFeedback:
		return p.handleFeedback(event)
	case EventToggleGroup:
		return p.handleToggleGroup(event)
	case EventToggleDarkMode, EventToggleSidebar:
		return p.handleTogglePreference(event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// GetViewModel returns the current view model for a view type
func (p *ChatPresenter) GetViewModel(viewType ViewModelType) (ViewModel, error) {
	vm := p.state.GetViewModel(viewType)
	if vm == nil {
		return nil, fmt.Errorf("unknown view type: %s", viewType)
	}
	return vm, nil
}

// Subscribe registers a callback for state updates
func (p *ChatPresenter) Subscribe(callback func(StateUpdate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateCallbacks = append(p.stateCallbacks, callback)
}

// SubscribeNotifications registers a callback for notifications
func (p *ChatPresenter) SubscribeNotifications(callback func(*Notification)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notificationCallbacks = append(p.notificationCallbacks, callback)
}

// Refresh reloads agents and the session list
func (p *ChatPresenter) Refresh() error {
	p.loadAgents()
	err := p.service.Start(p.context())

	p.state.mu.Lock()
	p.state.LastRefresh = time.Now()
	p.state.mu.Unlock()

	p.refreshAll()
	return err
}

// Shutdown cleans up resources
func (p *ChatPresenter) Shutdown() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	p.service.Bus().Unsubscribe(p.subID)
	return p.service.Close()
}

// GetState returns the application state
func (p *ChatPresenter) GetState() *AppState {
	return p.state
}

// Service returns the chat controller behind the presenter
func (p *ChatPresenter) Service() *chat.Service {
	return p.service
}

// ============================================
// Private handlers
// ============================================

func (p *ChatPresenter) handleSend(event *Event) error {
	var input chat.Input
	switch v := event.Value.(type) {
	case string:
		input.Text = v
	case chat.Input:
		input = v
	case *chat.Input:
		input = *v
	default:
		return fmt.Errorf("send event carries %T, want text or chat.Input", event.Value)
	}

	go func() {
		_, err := p.service.Send(p.context(), input)
		if errors.Is(err, chat.ErrBusy) {
			p.notify(NewNotification(NotifyWarning, "Busy", "Wait for the current reply before sending again"))
		}
	}()
	return nil
}

func (p *ChatPresenter) handleSelectSession(event *Event) error {
	if event.Target == "" {
		return errors.New("no session selected")
	}
	go p.service.SelectSession(p.context(), event.Target)
	return nil
}

func (p *ChatPresenter) handleDeleteSession(event *Event) error {
	if event.Target == "" {
		return errors.New("no session selected")
	}
	go p.service.DeleteSession(p.context(), event.Target)
	return nil
}

func (p *ChatPresenter) handleSelectAgent(event *Event) error {
	flow, err := p.catalog.Resolve(event.Target)
	if err != nil {
		return err
	}
	p.service.SetAgent(flow.Name)
	return nil
}

func (p *ChatPresenter) handleFeedback(event *Event) error {
	rating, err := strconv.Atoi(event.Data["rating"])
	if err != nil {
		return fmt.Errorf("invalid rating %q", event.Data["rating"])
	}
	messageID := event.Target
	comment := event.Data["comment"]
	go func() {
		_ = p.service.SubmitFeedback(p.context(), messageID, rating, comment)
	}()
	return nil
}

func (p *ChatPresenter) handleToggleGroup(event *Event) error {
	p.state.mu.RLock()
	var current *NodeVM
	for i := range p.state.Chat.Nodes {
		if p.state.Chat.Nodes[i].Key == event.Target {
			current = &p.state.Chat.Nodes[i]
			break
		}
	}
	expanded := current != nil && current.Expanded
	p.state.mu.RUnlock()

	if current == nil {
		return fmt.Errorf("unknown node: %s", event.Target)
	}
	p.state.ToggleExpanded(event.Target, expanded)
	p.refreshChat()
	return nil
}

func (p *ChatPresenter) handleTogglePreference(event *Event) error {
	p.state.mu.RLock()
	prefs := *p.state.Preferences
	p.state.mu.RUnlock()

	var err error
	switch event.Type {
	case EventToggleDarkMode:
		prefs.DarkMode = !prefs.DarkMode
		if p.prefs != nil {
			err = p.prefs.SetDarkMode(prefs.DarkMode)
		}
	case EventToggleSidebar:
		prefs.SidebarCollapsed = !prefs.SidebarCollapsed
		if p.prefs != nil {
			err = p.prefs.SetSidebarCollapsed(prefs.SidebarCollapsed)
		}
	}
	if err != nil {
		p.log.Warn("failed to persist preferences: %v", err)
	}

	prefs.UpdatedAt = time.Now()
	p.state.UpdateViewModel(&prefs)
	p.notifyStateUpdate(VMPreferences, &prefs)
	return err
}

// onBusEvent maps service events to view model refreshes
func (p *ChatPresenter) onBusEvent(e *eventbus.Event) {
	switch e.Type {
	case eventbus.EventNotification:
		p.notify(NotificationFromEvent(e))
	case eventbus.EventSessionSwitched:
		p.state.ResetExpanded()
		p.refreshSessions()
		p.refreshChat()
	case eventbus.EventSessionsUpdated:
		p.refreshSessions()
		p.refreshChat()
	case eventbus.EventTurnsUpdated, eventbus.EventWaitingChanged:
		p.refreshChat()
	case eventbus.EventAgentChanged:
		p.refreshAgents()
		p.refreshChat()
	default:
		p.log.Debug("bus event %s", e.Type)
	}
}

// ============================================
// Loading
// ============================================

func (p *ChatPresenter) loadPreferences() {
	if p.prefs == nil {
		return
	}
	prefs, err := p.prefs.Preferences()
	if err != nil {
		p.log.Warn("failed to load preferences: %v", err)
		return
	}
	p.state.UpdateViewModel(&PreferencesVM{
		BaseViewModel:    BaseViewModel{VMType: VMPreferences, UpdatedAt: time.Now()},
		DarkMode:         prefs.DarkMode,
		SidebarCollapsed: prefs.SidebarCollapsed,
	})
}

func (p *ChatPresenter) loadAgents() {
	if p.agentSource == nil {
		return
	}
	flows, err := p.agentSource.AgenticFlows(p.context())
	if err != nil {
		p.notify(NewNotification(NotifyError, "Agents", err.Error()))
		return
	}
	p.catalog.Load(flows)
}

// restoreAgent picks the saved agent, then the configured one, then the first
func (p *ChatPresenter) restoreAgent() {
	candidates := []string{}
	if p.tab != nil {
		if saved, err := p.tab.CurrentAgent(); err == nil && saved != "" {
			candidates = append(candidates, saved)
		}
	}
	candidates = append(candidates, p.service.Agent())

	for _, name := range candidates {
		if _, ok := p.catalog.Get(name); ok {
			if name != p.service.Agent() {
				p.service.SetAgent(name)
			}
			return
		}
	}
	if flow, ok := p.catalog.Default(); ok {
		p.service.SetAgent(flow.Name)
	}
}

func (p *ChatPresenter) restoreSession() {
	if p.tab == nil {
		return
	}
	saved, err := p.tab.CurrentSession()
	if err != nil {
		p.log.Warn("failed to read saved session: %v", err)
		return
	}
	if saved == nil || saved.ID == "" {
		return
	}
	if err := p.service.SelectSession(p.context(), saved.ID); err != nil {
		p.log.Warn("failed to restore session %s: %v", saved.ID, err)
	}
}

// ============================================
// View model refresh
// ============================================

func (p *ChatPresenter) refreshAll() {
	p.refreshChat()
	p.refreshSessions()
	p.refreshAgents()

	p.state.mu.RLock()
	prefs := p.state.Preferences
	p.state.mu.RUnlock()
	p.notifyStateUpdate(VMPreferences, prefs)
}

func (p *ChatPresenter) refreshChat() {
	vm := NewChatVM(p.service.Snapshot(), p.catalog, p.state.ExpandedOverrides())
	p.state.UpdateViewModel(vm)
	p.notifyStateUpdate(VMChat, vm)
}

func (p *ChatPresenter) refreshSessions() {
	vm := NewSessionsVM(p.service.Sessions(), p.service.ActiveSession())
	p.state.UpdateViewModel(vm)
	p.notifyStateUpdate(VMSessions, vm)
}

func (p *ChatPresenter) refreshAgents() {
	vm := NewAgentsVM(p.catalog.List(), p.service.Agent())
	p.state.UpdateViewModel(vm)
	p.notifyStateUpdate(VMAgents, vm)
}

func (p *ChatPresenter) context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx
}

func (p *ChatPresenter) notify(n *Notification) {
	p.state.AddNotification(n)

	p.mu.RLock()
	callbacks := p.notificationCallbacks
	p.mu.RUnlock()

	for _, cb := range callbacks {
		cb(n)
	}
}

func (p *ChatPresenter) notifyStateUpdate(viewType ViewModelType, vm ViewModel) {
	update := StateUpdate{
		ViewType:  viewType,
		ViewModel: vm,
	}

	p.mu.RLock()
	callbacks := p.stateCallbacks
	p.mu.RUnlock()

	for _, cb := range callbacks {
		cb(update)
	}
}
