package chat

// Registry is the ordered list of known sessions.
// It is not safe for concurrent use; Service guards it.
type Registry struct {
	sessions []Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Load replaces the registry content with a fetched list
func (r *Registry) Load(sessions []Session) {
	r.sessions = make([]Session, len(sessions))
	copy(r.sessions, sessions)
}

// Upsert replaces the session with the same id in place, or appends it.
// Returns true if an existing entry was replaced.
func (r *Registry) Upsert(session Session) bool {
	for i := range r.sessions {
		if r.sessions[i].ID == session.ID {
			r.sessions[i] = session
			return true
		}
	}
	r.sessions = append(r.sessions, session)
	return false
}

// Remove deletes a session by id, returns false if it was unknown
func (r *Registry) Remove(id string) bool {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a session by id
func (r *Registry) Get(id string) (Session, bool) {
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// List returns a copy of the sessions
func (r *Registry) List() []Session {
	out := make([]Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	return len(r.sessions)
}
