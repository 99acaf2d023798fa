package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fred-chat/modules/platform/eventbus"
	"fred-chat/modules/platform/logger"
	"fred-chat/modules/platform/transport"

	"github.com/google/uuid"
)

// ErrBusy is returned when a turn is already waiting for its reply
var ErrBusy = errors.New("a reply is already pending")

// Backend is the REST side of the chat backend
type Backend interface {
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]Turn, error)
	Upload(ctx context.Context, req UploadRequest) error
	Transcribe(ctx context.Context, clip AudioClip) (string, error)
	Feedback(ctx context.Context, fb Feedback) error
}

// ConnectionManager owns the socket of one chat view
type ConnectionManager interface {
	EnsureConnection(ctx context.Context) (*transport.Connection, error)
	SetFrameHandler(handler transport.FrameHandler)
	SetCloseHandler(handler transport.CloseHandler)
	Close() error
}

// StateSaver persists the per-tab selection, may be nil
type StateSaver interface {
	SaveCurrentSession(session *Session) error
	SaveCurrentAgent(name string) error
}

// Deps are the collaborators of a Service
type Deps struct {
	Backend     Backend
	Connections ConnectionManager
	Agents      AgentLookup
	Bus         *eventbus.Bus
	State       StateSaver
	Logger      *logger.Logger
	UserID      string
	AgentName   string
}

// Snapshot is a consistent copy of the service state
type Snapshot struct {
	Turns    []Turn
	Nodes    []RenderNode
	Sessions []Session
	Active   *Session
	Waiting  bool
	Agent    string
	UserID   string
}

// Service is the streaming chat session controller of one chat view
type Service struct {
	backend Backend
	conns   ConnectionManager
	agents  AgentLookup
	bus     *eventbus.Bus
	state   StateSaver
	log     *logger.Logger
	userID  string

	mu        sync.Mutex
	buffer    *Buffer
	registry  *Registry
	active    *Session
	waiting   bool
	agent     string
	conn      *transport.Connection
	selectSeq uint64
	sentSeq   uint64 // selectSeq of the last turn sent
}

// NewService creates a chat service and wires it to its connection manager
func NewService(deps Deps) *Service {
	if deps.Bus == nil {
		deps.Bus = eventbus.NewBus()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	s := &Service{
		backend:  deps.Backend,
		conns:    deps.Connections,
		agents:   deps.Agents,
		bus:      deps.Bus,
		state:    deps.State,
		log:      deps.Logger,
		userID:   deps.UserID,
		agent:    deps.AgentName,
		buffer:   NewBuffer(),
		registry: NewRegistry(),
	}

	if s.conns != nil {
		s.conns.SetFrameHandler(s.handleFrame)
		s.conns.SetCloseHandler(s.handleClose)
	}
	return s
}

// Bus returns the event bus views subscribe to
func (s *Service) Bus() *eventbus.Bus {
	return s.bus
}

// Start fetches the session list once for this view
func (s *Service) Start(ctx context.Context) error {
	sessions, err := s.backend.ListSessions(ctx)
	if err != nil {
		s.notify(eventbus.LevelError, "Could not load sessions: %v", err)
		return err
	}

	s.mu.Lock()
	s.registry.Load(sessions)
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionsUpdated).WithData("count", len(sessions)))
	return nil
}

// Close closes the socket left open by this view
func (s *Service) Close() error {
	if s.conns == nil {
		return nil
	}
	return s.conns.Close()
}

// Snapshot returns the current state and its render list
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.buffer.Turns()
	snap := Snapshot{
		Turns:    turns,
		Nodes:    Render(turns, s.agents),
		Sessions: s.registry.List(),
		Waiting:  s.waiting,
		Agent:    s.agent,
		UserID:   s.userID,
	}
	if s.active != nil {
		active := *s.active
		snap.Active = &active
	}
	return snap
}

// Render returns the render list of the active session
func (s *Service) Render() []RenderNode {
	s.mu.Lock()
	turns := s.buffer.Turns()
	s.mu.Unlock()
	return Render(turns, s.agents)
}

// Turns returns the buffered turns
func (s *Service) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Turns()
}

// Sessions returns the known sessions
func (s *Service) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.List()
}

// ActiveSession returns the active session, nil before the first final
func (s *Service) ActiveSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	active := *s.active
	return &active
}

// Waiting returns true while a turn waits for its reply
func (s *Service) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

// Agent returns the agent receiving the next turns
func (s *Service) Agent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

// SetAgent selects the agent receiving the next turns
func (s *Service) SetAgent(name string) {
	s.mu.Lock()
	s.agent = name
	s.mu.Unlock()

	if s.state != nil {
		if err := s.state.SaveCurrentAgent(name); err != nil {
			s.log.Warn("failed to persist agent: %v", err)
		}
	}
	s.bus.Publish(eventbus.NewEvent(eventbus.EventAgentChanged).WithData("agent", name))
}

// Send runs the send pipeline for one compose action
func (s *Service) Send(ctx context.Context, in Input) (*SendResult, error) {
	result := &SendResult{}

	s.mu.Lock()
	sessionID := s.activeID()
	agent := s.agent
	s.mu.Unlock()

	// Attachments are uploaded independently of each other and of the message
	for _, file := range in.Files {
		err := s.backend.Upload(ctx, UploadRequest{
			UserID:    s.userID,
			SessionID: sessionID,
			AgentName: agent,
			File:      file,
		})
		if err != nil {
			result.Failed = append(result.Failed, FileError{Name: file.Name, Err: err})
			s.notify(eventbus.LevelError, "Upload of %s failed: %v", file.Name, err)
			continue
		}
		result.Uploaded = append(result.Uploaded, file.Name)
		s.notify(eventbus.LevelSuccess, "Uploaded %s", file.Name)
	}

	text := in.Text
	if strings.TrimSpace(text) == "" {
		text = ""
		if in.Audio != nil {
			transcript, err := s.backend.Transcribe(ctx, *in.Audio)
			if err != nil {
				s.notify(eventbus.LevelError, "Transcription failed: %v", err)
				return result, err
			}
			result.Transcript = transcript
			text = transcript
		}
	}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	turn, err := s.sendText(ctx, text)
	result.Turn = turn
	return result, err
}

// sendText appends a human turn locally and sends it over the socket
func (s *Service) sendText(ctx context.Context, text string) (*Turn, error) {
	s.mu.Lock()
	if s.waiting {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	turn := Turn{
		ID:        uuid.New().String(),
		Kind:      KindHuman,
		Content:   text,
		Timestamp: time.Now().UTC(),
		SessionID: s.activeID(),
		Rank:      s.buffer.Len(),
		Metadata:  Metadata{MetaAgentName: s.agent},
	}
	s.buffer.Append(turn)
	s.waiting = true
	s.sentSeq = s.selectSeq
	req := QueryRequest{
		UserID:    s.userID,
		SessionID: turn.SessionID,
		Message:   text,
		AgentName: s.agent,
	}
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated))
	s.publishWaiting(true)

	if s.conns == nil {
		s.failSend("No connection manager configured")
		return &turn, transport.ErrNotOpen
	}

	conn, err := s.conns.EnsureConnection(ctx)
	if err != nil {
		s.failSend("Could not connect to the chat backend: %v", err)
		return &turn, err
	}

	s.mu.Lock()
	opened := s.conn != conn
	s.conn = conn
	s.mu.Unlock()
	if opened {
		s.bus.Publish(eventbus.NewEvent(eventbus.EventConnectionOpened).WithData("connection_id", conn.ID()))
	}

	if err := conn.Send(req); err != nil {
		s.failSend("Could not send message: %v", err)
		return &turn, err
	}

	s.log.Debug("sent turn %s (session=%q agent=%q)", turn.ID, req.SessionID, req.AgentName)
	return &turn, nil
}

// failSend clears the waiting flag and reports a transport failure
func (s *Service) failSend(format string, args ...interface{}) {
	s.setWaiting(false)
	s.notify(eventbus.LevelError, format, args...)
}

// handleFrame decodes one inbound frame; malformed frames kill the socket
func (s *Service) handleFrame(conn *transport.Connection, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		s.log.Error("dropping connection %s: %v", conn.ID(), err)
		conn.Close()
		s.setWaiting(false)
		s.notify(eventbus.LevelError, "Invalid message from the chat backend, connection closed")
		return
	}
	s.HandleEnvelope(env)
}

// handleClose ends the waiting state when the socket goes away
func (s *Service) handleClose(conn *transport.Connection, cause error) {
	s.mu.Lock()
	current := s.conn == conn
	wasWaiting := s.waiting && current
	if wasWaiting {
		s.waiting = false
	}
	if current {
		s.conn = nil
	}
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventConnectionClosed).WithData("connection_id", conn.ID()))
	if wasWaiting {
		s.publishWaiting(false)
	}

	switch {
	case cause != nil && current:
		s.notify(eventbus.LevelError, "Connection to the chat backend lost: %v", cause)
	case wasWaiting:
		s.notify(eventbus.LevelWarning, "Connection closed before the reply arrived")
	}
}

// HandleEnvelope applies one decoded frame to the service state
func (s *Service) HandleEnvelope(env *Envelope) {
	switch env.Type {
	case EnvelopeStream:
		s.handleStream(*env.Message)
	case EnvelopeFinal:
		s.handleFinal(*env.Session)
	case EnvelopeError:
		s.setWaiting(false)
		s.notify(eventbus.LevelError, "%s", env.Content)
	}
}

func (s *Service) handleStream(turn Turn) {
	s.mu.Lock()
	if !s.ownsLocked(turn.SessionID) {
		s.mu.Unlock()
		s.log.Debug("ignoring turn %s of inactive session %s", turn.ID, turn.SessionID)
		return
	}
	s.buffer.Append(turn)
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated).WithData("turn_id", turn.ID))
}

// handleFinal records the session of a completed reply. It becomes active
// only when it answers the current selection; a final that arrives after
// the user moved to another session just updates the registry.
func (s *Service) handleFinal(session Session) {
	s.mu.Lock()
	s.registry.Upsert(session)
	adopt := session.ID != "" && s.ownsLocked(session.ID)
	switched := adopt && s.active == nil
	active := session
	if adopt {
		s.active = &active
	}
	wasWaiting := s.waiting
	s.waiting = false
	s.mu.Unlock()

	if adopt {
		s.persistSession(&active)
	} else {
		s.log.Debug("final of %s arrived outside its selection", session.ID)
	}
	s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionsUpdated).WithData("session_id", session.ID))
	if switched {
		s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionSwitched).WithData("session_id", session.ID))
	}
	if wasWaiting {
		s.publishWaiting(false)
	}
}

// SelectSession makes a session active and loads its history.
// A response arriving after a newer selection is discarded.
func (s *Service) SelectSession(ctx context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.registry.Get(id)
	if !ok {
		session = Session{ID: id}
	}
	s.selectSeq++
	seq := s.selectSeq
	s.active = &session
	s.buffer.Reset()
	s.mu.Unlock()

	s.persistSession(&session)
	s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionSwitched).WithData("session_id", id))
	s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated))

	turns, err := s.backend.History(ctx, id)

	s.mu.Lock()
	if seq != s.selectSeq {
		s.mu.Unlock()
		s.log.Debug("discarding stale history of %s", id)
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		s.notify(eventbus.LevelError, "Could not load session history: %v", err)
		return err
	}
	s.buffer.ReplaceAll(turns)
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated).WithData("session_id", id))
	return nil
}

// NewConversation clears the active session; the backend mints a new one
// on the next turn
func (s *Service) NewConversation() {
	s.mu.Lock()
	s.active = nil
	s.selectSeq++
	s.buffer.Reset()
	s.mu.Unlock()

	s.persistSession(nil)
	s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionSwitched).WithData("session_id", ""))
	s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated))
}

// DeleteSession deletes a session on the backend and removes it locally.
// Local removal happens even if the backend call failed.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	err := s.backend.DeleteSession(ctx, id)
	if err != nil {
		s.log.Warn("backend delete of %s failed: %v", id, err)
		s.notify(eventbus.LevelError, "Could not delete session on the backend: %v", err)
	}

	s.mu.Lock()
	s.registry.Remove(id)
	wasActive := s.active != nil && s.active.ID == id
	if wasActive {
		s.active = nil
		s.selectSeq++
		s.buffer.Reset()
	}
	s.mu.Unlock()

	s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionsUpdated).WithData("session_id", id))
	if wasActive {
		s.persistSession(nil)
		s.bus.Publish(eventbus.NewEvent(eventbus.EventSessionSwitched).WithData("session_id", ""))
		s.bus.Publish(eventbus.NewEvent(eventbus.EventTurnsUpdated))
	}
	return err
}

// SubmitFeedback rates a turn of the active session
func (s *Service) SubmitFeedback(ctx context.Context, messageID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	s.mu.Lock()
	fb := Feedback{
		Rating:    rating,
		Comment:   comment,
		MessageID: messageID,
		SessionID: s.activeID(),
		AgentName: s.agent,
	}
	s.mu.Unlock()

	if err := s.backend.Feedback(ctx, fb); err != nil {
		s.notify(eventbus.LevelError, "Could not send feedback: %v", err)
		return err
	}
	s.notify(eventbus.LevelSuccess, "Feedback sent")
	return nil
}

// ownsLocked reports whether frames of sessionID belong to the current
// selection. Without an active session only the conversation started by the
// last send qualifies. Must be called with s.mu held.
func (s *Service) ownsLocked(sessionID string) bool {
	if s.active != nil {
		return sessionID == "" || sessionID == s.active.ID
	}
	return sessionID == "" || s.sentSeq == s.selectSeq
}

// activeID must be called with s.mu held
func (s *Service) activeID() string {
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

func (s *Service) setWaiting(waiting bool) {
	s.mu.Lock()
	changed := s.waiting != waiting
	s.waiting = waiting
	s.mu.Unlock()

	if changed {
		s.publishWaiting(waiting)
	}
}

func (s *Service) publishWaiting(waiting bool) {
	s.bus.Publish(eventbus.NewEvent(eventbus.EventWaitingChanged).WithData("waiting", waiting))
}

func (s *Service) persistSession(session *Session) {
	if s.state == nil {
		return
	}
	if err := s.state.SaveCurrentSession(session); err != nil {
		s.log.Warn("failed to persist current session: %v", err)
	}
}

// notify publishes a toast and mirrors it to the log
func (s *Service) notify(level, format string, args ...interface{}) {
	event := eventbus.NewNotification(level, format, args...).WithSource("chat")
	switch level {
	case eventbus.LevelError:
		s.log.Error("%s", event.String("message"))
	case eventbus.LevelWarning:
		s.log.Warn("%s", event.String("message"))
	default:
		s.log.Debug("%s", event.String("message"))
	}
	s.bus.Publish(event)
}
