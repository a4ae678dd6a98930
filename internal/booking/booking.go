package booking

import (
	"context"
	"errors"
	"time"

	"github.com/neurosupport/carechat/internal/common"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment links a chat session to a scheduled therapist slot.
// One appointment per session.
type Appointment struct {
	ID        string            `gorm:"type:varchar(26);primaryKey" json:"id"`
	VisitorID string            `gorm:"type:varchar(36);index;not null" json:"visitor_id"`
	SessionID string            `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	StartTime time.Time         `gorm:"not null;index" json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Status    AppointmentStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Appointment) TableName() string { return "appointments" }

// TherapistNote is private to the therapist side; it is never sent
// over a chat connection.
type TherapistNote struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AppointmentID string    `gorm:"type:varchar(26);index;not null" json:"appointment_id"`
	Note          string    `gorm:"type:text;not null" json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

func (TherapistNote) TableName() string { return "therapist_notes" }

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Book schedules the session's appointment at the next available slot
// (next day, on the hour). Booking twice for one session returns the
// existing appointment instead of creating a second one.
func (s *Service) Book(ctx context.Context, sessionID, visitorID string) (*Appointment, error) {
	existing, err := s.BySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	appt := &Appointment{
		ID:        id,
		VisitorID: visitorID,
		SessionID: sessionID,
		StartTime: time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour),
		Status:    StatusScheduled,
	}
	if err := s.db.WithContext(ctx).Create(appt).Error; err != nil {
		// lost a create race on the session index
		if again, gerr := s.BySession(ctx, sessionID); gerr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// BySession returns the session's appointment, or nil when none exists.
func (s *Service) BySession(ctx context.Context, sessionID string) (*Appointment, error) {
	var a Appointment
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Upcoming lists scheduled appointments from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var appts []Appointment
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_time >= ?", StatusScheduled, time.Now().UTC()).
		Order("start_time ASC").
		Limit(limit).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (s *Service) AddNote(ctx context.Context, appointmentID, note string) (*TherapistNote, error) {
	n := &TherapistNote{AppointmentID: appointmentID, Note: note}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) NotesForAppointment(ctx context.Context, appointmentID string) ([]TherapistNote, error) {
	var notes []TherapistNote
	err := s.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}
