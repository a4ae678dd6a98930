package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neurosupport/carechat/internal/common"
	"gorm.io/gorm"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

type createSessionReq struct {
	VisitorName string `json:"visitor_name"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, visitor, err := h.ChatSvc.CreateSession(c.Request.Context(), req.VisitorName, req.Provider, req.Model)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.OK(c, gin.H{
		"session_id":   sess.SessionID,
		"visitor_id":   visitor.ID,
		"visitor_name": req.VisitorName,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	if _, err := h.Repo.GetSessionBySessionID(c.Request.Context(), sessionID); err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "internal error")
		return
	}

	msgs, err := h.Repo.ListMessages(c.Request.Context(), sessionID, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

func (h *Handler) GetSessionStats(c *gin.Context) {
	stats, err := h.Repo.SessionStats(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load stats")
		return
	}
	common.OK(c, stats)
}
