package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateVisitor(ctx context.Context, v *Visitor) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns messages in DESC id order (newest -> oldest),
// with keyset paging via beforeID.
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecentWindow returns the most recent messages oldest-first, sized for
// the escalation evaluator and the responder context.
func (r *Repo) RecentWindow(ctx context.Context, sessionID string, size int) ([]Message, error) {
	if size <= 0 {
		size = 5
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(size).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	// reverse DESC -> ASC
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// EmotionTimeline returns labeled enduser messages oldest-first, for
// the therapist dashboard.
func (r *Repo) EmotionTimeline(ctx context.Context, sessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND role = ? AND emotion IS NOT NULL", sessionID, "user").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

type SessionStats struct {
	MessageCount    int64   `json:"message_count"`
	StartTime       *string `json:"start_time"`
	LatestTime      *string `json:"latest_time"`
	DurationMinutes float64 `json:"duration_minutes"`
}

func (r *Repo) SessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	stats := &SessionStats{MessageCount: int64(len(msgs))}
	if len(msgs) > 0 {
		start := msgs[0].CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		latest := msgs[len(msgs)-1].CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		stats.StartTime = &start
		stats.LatestTime = &latest
		stats.DurationMinutes = msgs[len(msgs)-1].CreatedAt.Sub(msgs[0].CreatedAt).Minutes()
	}
	return stats, nil
}

// GetEscalationBySession returns the session's record, or nil when none
// exists yet.
func (r *Repo) GetEscalationBySession(ctx context.Context, sessionID string) (*EscalationRecord, error) {
	var rec EscalationRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// CreateEscalationIfAbsent inserts the record unless the session
// already has one. The unique session index decides races: the loser
// gets created=false and the winner's record back, never an error.
func (r *Repo) CreateEscalationIfAbsent(ctx context.Context, rec *EscalationRecord) (*EscalationRecord, bool, error) {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, true, nil
	}

	existing, getErr := r.GetEscalationBySession(ctx, rec.SessionID)
	if getErr != nil {
		return nil, false, getErr
	}
	if existing != nil {
		return existing, false, nil
	}
	// insert failed for some other reason
	return nil, false, err
}

// MarkEscalationAccepted resolves a pending record. The status guard
// keeps terminal states terminal even under concurrent replies.
func (r *Repo) MarkEscalationAccepted(ctx context.Context, id, appointmentID string) error {
	return r.db.WithContext(ctx).Model(&EscalationRecord{}).
		Where("id = ? AND status = ?", id, EscalationPending).
		Updates(map[string]any{
			"status":         EscalationAccepted,
			"appointment_id": appointmentID,
			"resolved_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *Repo) MarkEscalationDeclined(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&EscalationRecord{}).
		Where("id = ? AND status = ?", id, EscalationPending).
		Updates(map[string]any{
			"status":      EscalationDeclined,
			"resolved_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *Repo) ListEscalations(ctx context.Context, status EscalationStatus, limit int) ([]EscalationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("triggered_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var recs []EscalationRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
