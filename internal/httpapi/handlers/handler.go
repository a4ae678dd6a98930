package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/neurosupport/carechat/internal/booking"
	"github.com/neurosupport/carechat/internal/chat"
	"github.com/neurosupport/carechat/internal/config"
	"github.com/neurosupport/carechat/internal/store/redisstore"
)

type Handler struct {
	Cfg      config.Config
	ChatSvc  *chat.Service
	Repo     *chat.Repo
	Booking  *booking.Service
	Presence *redisstore.Store

	upgrader websocket.Upgrader
}

func NewHandler(cfg config.Config, svc *chat.Service, repo *chat.Repo, bsvc *booking.Service, presence *redisstore.Store) *Handler {
	return &Handler{
		Cfg:      cfg,
		ChatSvc:  svc,
		Repo:     repo,
		Booking:  bsvc,
		Presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// anonymous product, no cookie auth: origin is not trusted anyway
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}
