package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neurosupport/carechat/internal/common"
	"github.com/neurosupport/carechat/internal/observability"
	"github.com/neurosupport/carechat/internal/ws"
	"gorm.io/gorm"
)

// inboundFrame is what clients may send. Any sender/role field a
// client supplies is ignored: routing authority comes from the
// connection's registered role only.
type inboundFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	IsTyping bool   `json:"is_typing"`
}

// ChatWS upgrades to a websocket and pumps inbound frames through the
// dispatch loop until the client goes away.
func (h *Handler) ChatWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	role := ws.Role(c.DefaultQuery("role", string(ws.RoleUser)))
	log := observability.LoggerFromContext(c.Request.Context())

	if _, err := h.Repo.GetSessionBySessionID(c.Request.Context(), sessionID); err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "internal error")
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}

	registry := h.ChatSvc.Registry()
	conn, err := registry.Connect(sock, sessionID, role)
	if err != nil {
		// invalid role: close with a distinguishable reason, never
		// coerce to a default role
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid role")
		_ = sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = sock.Close()
		return
	}

	if h.Presence != nil {
		if perr := h.Presence.MarkActive(c.Request.Context(), sessionID); perr != nil {
			log.Warn("presence mark active", "session_id", sessionID, "err", perr)
		}
	}

	defer func() {
		registry.Disconnect(conn)
		if h.Presence != nil && registry.ConnectionCount(sessionID) == 0 {
			_ = h.Presence.MarkInactive(c.Request.Context(), sessionID)
		}
		log.Info("ws disconnected", "session_id", sessionID, "role", role)
	}()

	log.Info("ws connected", "session_id", sessionID, "role", role)

	for {
		var in inboundFrame
		if err := sock.ReadJSON(&in); err != nil {
			return
		}

		if h.Presence != nil {
			_ = h.Presence.MarkActive(c.Request.Context(), sessionID)
		}

		if in.Type == ws.FrameTyping {
			h.ChatSvc.Typing(conn, in.IsTyping)
			continue
		}

		if err := h.ChatSvc.HandleInbound(c.Request.Context(), conn, in.Content); err != nil {
			log.Error("dispatch failed", "session_id", sessionID, "role", role, "err", err)
		}
	}
}
