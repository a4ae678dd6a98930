package chat

import (
	"time"

	"github.com/neurosupport/carechat/internal/common"
)

// Visitor is an anonymous participant. No account, no credentials;
// the id only ties a session to its appointments.
type Visitor struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      *string   `gorm:"type:varchar(128)" json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Visitor) TableName() string { return "visitors" }

type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	VisitorID string    `gorm:"type:varchar(36);index;not null" json:"visitor_id"`
	Provider  string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model     string    `gorm:"type:varchar(64);not null" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message is append-only and never mutated. Emotion and Confidence are
// nullable: emotion is only attached to enduser messages (and only when
// the classifier succeeded), confidence to scored ai replies.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"type:varchar(26);not null;index:idx_chat_msg_session_id" json:"session_id"`
	Role       string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Emotion    *string   `gorm:"type:varchar(32)" json:"emotion,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

func NewSessionID() (string, error) { return common.NewULID() }
