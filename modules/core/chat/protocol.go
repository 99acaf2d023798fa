package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EnvelopeType discriminates inbound frames
type EnvelopeType string

const (
	EnvelopeStream EnvelopeType = "stream" // One turn, appended immediately
	EnvelopeFinal  EnvelopeType = "final"  // Authoritative session, ends waiting
	EnvelopeError  EnvelopeType = "error"  // Backend-reported error, ends waiting
)

// ErrProtocol is returned for inbound frames that cannot be understood
var ErrProtocol = errors.New("protocol error")

// Envelope is a typed inbound WebSocket frame
type Envelope struct {
	Type    EnvelopeType `json:"type"`
	Message *Turn        `json:"message,omitempty"`
	Session *Session     `json:"session,omitempty"`
	Content string       `json:"content,omitempty"`
}

// QueryRequest is the outbound frame sent for each human turn
type QueryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	AgentName string `json:"agent_name"`
}

// DecodeEnvelope parses and validates an inbound frame
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch env.Type {
	case EnvelopeStream:
		if env.Message == nil {
			return nil, fmt.Errorf("%w: stream frame without message", ErrProtocol)
		}
	case EnvelopeFinal:
		if env.Session == nil || env.Session.ID == "" {
			return nil, fmt.Errorf("%w: final frame without session", ErrProtocol)
		}
	case EnvelopeError:
		if env.Content == "" {
			env.Content = "unknown backend error"
		}
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", ErrProtocol, env.Type)
	}

	return &env, nil
}
