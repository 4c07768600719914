package entities

import (
	"time"

	"github.com/satriahrh/tutur/domain"
)

// SessionState is an immutable snapshot of a session published after every transition
type SessionState struct {
	SessionID     string        `json:"session_id"`
	Phase         Phase         `json:"phase"`
	RequestID     uint64        `json:"request_id"`
	LastError     *domain.Error `json:"error,omitempty"`
	ResponseText  string        `json:"response_text,omitempty"`
	SelectedVoice string        `json:"selected_voice,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewSessionState returns the initial state of a session
func NewSessionState(sessionID string) SessionState {
	return SessionState{
		SessionID: sessionID,
		Phase:     PhaseIdle,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a copy that does not share the error descriptor
func (s SessionState) Clone() SessionState {
	if s.LastError != nil {
		e := *s.LastError
		s.LastError = &e
	}
	return s
}
