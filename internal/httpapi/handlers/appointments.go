package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neurosupport/carechat/internal/common"
	"gorm.io/gorm"
)

func (h *Handler) UpcomingAppointments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	appts, err := h.Booking.Upcoming(c.Request.Context(), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to list appointments")
		return
	}
	common.OK(c, gin.H{"appointments": appts})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appt, err := h.Booking.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40005, "appointment not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50007, "internal error")
		return
	}
	common.OK(c, appt)
}
