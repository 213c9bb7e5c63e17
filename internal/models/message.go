package models

import "time"

// Message is a single transcript entry. Messages carry no identity beyond their position in the
// session transcript, and that position is also their display order.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a prompt typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a reply produced by the backend, or a locally generated assistant message
	// such as the upload greeting or a transport error.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
