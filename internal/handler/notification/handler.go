package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/notification"
	"github.com/jwalitptl/clinic-queue/pkg/httputil"
)

type Handler struct {
	service notification.Servicer
}

func NewHandler(service notification.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.Send)
		notifications.GET("/inbox", h.Inbox)
	}
}

type inboxResponse struct {
	Inbound  []*model.Notification `json:"inbound"`
	Outbound []*model.Notification `json:"outbound"`
}

func (h *Handler) Send(c *gin.Context) {
	var req model.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	n, err := h.service.Send(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, n)
}

// Inbox returns the caller's bounded inbound and outbound logs.
func (h *Handler) Inbox(c *gin.Context) {
	inbox, err := h.service.Inbox(c.Request.Context(), notification.AudienceFor(middleware.Actor(c)))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, inboxResponse{
		Inbound:  nonNil(inbox.Inbound()),
		Outbound: nonNil(inbox.Outbound()),
	})
}

func nonNil(ns []*model.Notification) []*model.Notification {
	if ns == nil {
		return []*model.Notification{}
	}
	return ns
}
