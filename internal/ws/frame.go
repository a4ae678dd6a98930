package ws

import "time"

// Role is bound to a connection at connect time and never changes.
// Messages additionally use RoleAI and RoleSystem; those never connect.
type Role string

const (
	RoleUser      Role = "user"
	RoleTherapist Role = "therapist"
	RoleAI        Role = "ai"
	RoleSystem    Role = "system"
)

// ConnectableRole reports whether a client may open a connection with
// this role. Everything outside the closed set is rejected.
func ConnectableRole(r Role) bool {
	return r == RoleUser || r == RoleTherapist
}

// Outbound frame kinds.
const (
	FrameMessage            = "message"
	FrameTyping             = "typing"
	FrameSystemSuggestion   = "system_suggestion"
	FrameEscalationAccepted = "escalation_accepted"
	FrameSystemMessage      = "system_message"
	FrameError              = "error"
)

// Frame is the single outbound wire shape. Zero fields are omitted, so
// each kind only carries what it needs.
type Frame struct {
	Type          string     `json:"type"`
	ID            string     `json:"id,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
	Sender        Role       `json:"sender,omitempty"`
	Content       string     `json:"content,omitempty"`
	Emotion       *string    `json:"emotion,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	IsTyping      *bool      `json:"is_typing,omitempty"`
	AppointmentID string     `json:"appointment_id,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

func SystemMessageFrame(sessionID, text string) Frame {
	now := time.Now().UTC()
	return Frame{
		Type:      FrameSystemMessage,
		SessionID: sessionID,
		Sender:    RoleSystem,
		Content:   text,
		CreatedAt: &now,
	}
}

func TypingFrame(sessionID string, sender Role, isTyping bool) Frame {
	return Frame{
		Type:      FrameTyping,
		SessionID: sessionID,
		Sender:    sender,
		IsTyping:  &isTyping,
	}
}
