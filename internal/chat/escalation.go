package chat

import "time"

// Reason records which detector fired. At most one escalation ever
// exists per session, so the first reason wins permanently.
type Reason string

const (
	ReasonUserRequest       Reason = "user_request"
	ReasonAIRepetition      Reason = "ai_repetition"
	ReasonEmotionalDistress Reason = "emotional_distress"
	ReasonLowAIConfidence   Reason = "low_ai_confidence"
	ReasonAISignal          Reason = "ai_signal"
)

type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationAccepted EscalationStatus = "accepted"
	EscalationDeclined EscalationStatus = "declined"
)

// EscalationRecord is the per-session state machine row:
// pending -> accepted | declined, both terminal. The unique session
// index is what makes concurrent triggers collapse to one record.
type EscalationRecord struct {
	ID            string           `gorm:"type:varchar(26);primaryKey" json:"id"`
	SessionID     string           `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	Reason        Reason           `gorm:"type:varchar(32);not null" json:"reason"`
	Status        EscalationStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	AppointmentID *string          `gorm:"type:varchar(26)" json:"appointment_id,omitempty"`
	TriggeredAt   time.Time        `gorm:"not null" json:"triggered_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
}

func (EscalationRecord) TableName() string { return "chat_escalations" }
