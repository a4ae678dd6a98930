package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neurosupport/carechat/internal/common"
	"github.com/neurosupport/carechat/internal/httpapi/handlers"
	"github.com/neurosupport/carechat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// chat: anonymous end-user surface
	r.POST("/chat/sessions", h.CreateChatSession)
	r.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	r.GET("/chat/sessions/:session_id/stats", h.GetSessionStats)
	r.GET("/chat/ws/:session_id", h.ChatWS)

	// therapist dashboard
	r.GET("/therapist/active-sessions", h.ActiveSessions)
	r.GET("/therapist/escalations", h.ListEscalations)
	r.GET("/therapist/emotion-timeline/:session_id", h.EmotionTimeline)
	r.POST("/therapist/notes", h.CreateNote)
	r.GET("/therapist/notes/:appointment_id", h.ListNotes)

	// appointments
	r.GET("/appointments/upcoming", h.UpcomingAppointments)
	r.GET("/appointments/:id", h.GetAppointment)

	return r
}
