package domain

import "time"

// Session is the per-call mutable state: the current node pointer and the
// accumulated key-value state bag. It is ephemeral; nothing survives the
// call. Sessions are not safe for concurrent use; callers serialize access
// per session (the engine does this).
type Session struct {
	ID            string
	CurrentNodeID string

	// State accumulates facts established during the call (confirmed
	// identity, delay reason, chosen plan, committed date). Keys, once
	// written, persist for the remainder of the session.
	State map[string]string

	// History records every node the session has visited, in order.
	History []string

	StartedAt    time.Time
	VoiceBackend string
}

// NewSession creates a clean session positioned at the entry node.
func NewSession(id, startNodeID, voiceBackend string) *Session {
	return &Session{
		ID:            id,
		CurrentNodeID: startNodeID,
		State:         make(map[string]string),
		History:       []string{startNodeID},
		StartedAt:     time.Now(),
		VoiceBackend:  voiceBackend,
	}
}

// Set writes a fact into the state bag.
func (s *Session) Set(key, value string) {
	s.State[key] = value
}

// Get reads a fact from the state bag.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.State[key]
	return v, ok
}

// Snapshot produces the observer-facing view of the session. The state bag
// is copied so observers cannot mutate live session state.
func (s *Session) Snapshot() Snapshot {
	state := make(map[string]string, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	return Snapshot{
		SessionID:     s.ID,
		CurrentNodeID: s.CurrentNodeID,
		State:         state,
		StartedAt:     s.StartedAt,
		VoiceBackend:  s.VoiceBackend,
	}
}

// Snapshot is the read-only session view published to the session registry
// for dashboard and metrics consumers.
type Snapshot struct {
	SessionID     string            `json:"session_id"`
	CurrentNodeID string            `json:"current_node_id"`
	State         map[string]string `json:"state,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	VoiceBackend  string            `json:"voice_backend,omitempty"`
}

// Elapsed returns how long the session has been running.
func (s Snapshot) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
