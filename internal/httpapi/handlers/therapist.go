package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neurosupport/carechat/internal/chat"
	"github.com/neurosupport/carechat/internal/common"
	"github.com/neurosupport/carechat/internal/observability"
)

// ActiveSessions lists sessions a therapist could join. Presence comes
// from redis when available so dashboards see sessions served by any
// instance; the local registry is the fallback.
func (h *Handler) ActiveSessions(c *gin.Context) {
	registry := h.ChatSvc.Registry()

	var ids []string
	if h.Presence != nil {
		var err error
		ids, err = h.Presence.ActiveSessions(c.Request.Context())
		if err != nil {
			observability.LoggerFromContext(c.Request.Context()).
				Warn("presence lookup failed, using local registry", "err", err)
			ids = nil
		}
	}
	if ids == nil {
		ids = registry.ActiveSessions()
	}

	sessions := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, gin.H{
			"session_id":    id,
			"connections":   registry.ConnectionCount(id),
			"human_handled": registry.HumanHandled(id),
		})
	}
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) ListEscalations(c *gin.Context) {
	status := chat.EscalationStatus(c.Query("status"))
	switch status {
	case "", chat.EscalationPending, chat.EscalationAccepted, chat.EscalationDeclined:
	default:
		common.Fail(c, http.StatusBadRequest, 10005, "invalid status filter")
		return
	}

	recs, err := h.Repo.ListEscalations(c.Request.Context(), status, 100)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list escalations")
		return
	}
	common.OK(c, gin.H{"escalations": recs})
}

// EmotionTimeline returns the labeled enduser messages of a session in
// order, for dashboard visualization.
func (h *Handler) EmotionTimeline(c *gin.Context) {
	msgs, err := h.Repo.EmotionTimeline(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to load timeline")
		return
	}

	points := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		points = append(points, gin.H{
			"message_id": m.ID,
			"emotion":    m.Emotion,
			"confidence": m.Confidence,
			"created_at": m.CreatedAt,
		})
	}
	common.OK(c, gin.H{"timeline": points})
}

type createNoteReq struct {
	AppointmentID string `json:"appointment_id" binding:"required"`
	Note          string `json:"note" binding:"required"`
}

// CreateNote stores a private therapist note; notes never reach chat
// connections.
func (h *Handler) CreateNote(c *gin.Context) {
	var req createNoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	note, err := h.Booking.AddNote(c.Request.Context(), req.AppointmentID, req.Note)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to create note")
		return
	}
	common.OK(c, note)
}

func (h *Handler) ListNotes(c *gin.Context) {
	notes, err := h.Booking.NotesForAppointment(c.Request.Context(), c.Param("appointment_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to list notes")
		return
	}
	common.OK(c, gin.H{"notes": notes})
}
