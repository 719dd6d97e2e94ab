package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/auth"
	"github.com/jwalitptl/clinic-queue/pkg/httputil"
)

type Handler struct {
	svc auth.Servicer
}

func NewHandler(svc auth.Servicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/console", h.ConsoleLogin)
		auth.POST("/screen", h.ScreenLogin)
		auth.POST("/admin", h.AdminLogin)
	}
}

func (h *Handler) ConsoleLogin(c *gin.Context) {
	var req model.ConsoleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	resp, err := h.svc.ConsoleLogin(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) ScreenLogin(c *gin.Context) {
	var req model.ScreenLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	resp, err := h.svc.ScreenLogin(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	resp, err := h.svc.AdminLogin(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}
