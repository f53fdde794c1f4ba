package domain

import "time"

// Message roles. The driver (Gemini) names the assistant role "model"; that
// convention is canonical across the codebase, including the dashboard feed.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
)

// Message is one turn of the call transcript.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at,omitempty"`
}
