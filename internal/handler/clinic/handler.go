package clinic

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/queue"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/httputil"
)

type Handler struct {
	service      queue.Servicer
	requireAdmin gin.HandlerFunc
}

func NewHandler(service queue.Servicer, requireAdmin gin.HandlerFunc) *Handler {
	return &Handler{service: service, requireAdmin: requireAdmin}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clinics := r.Group("/clinics")
	{
		clinics.GET("", h.ListClinics)
		clinics.GET("/:id", h.GetClinic)
		clinics.POST("", h.requireAdmin, h.CreateClinic)
		clinics.POST("/reset", h.requireAdmin, h.ResetAll)
		clinics.POST("/:id/call", h.Call)
		clinics.PUT("/:id/status", h.SetStatus)
	}
}

type statusRequest struct {
	Status model.ClinicStatus `json:"status" binding:"required,oneof=active paused"`
}

func (h *Handler) ListClinics(c *gin.Context) {
	clinics, err := h.service.ListClinics(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinics)
}

func (h *Handler) GetClinic(c *gin.Context) {
	id, ok := clinicID(c)
	if !ok {
		return
	}

	clinic, err := h.service.GetClinic(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) CreateClinic(c *gin.Context) {
	var req model.CreateClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	clinic, err := h.service.CreateClinic(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, clinic)
}

// Call applies a call action. The response carries the clinic as the store
// confirmed it; consoles must not show a number before that.
func (h *Handler) Call(c *gin.Context) {
	id, ok := clinicID(c)
	if !ok {
		return
	}
	var cmd queue.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	clinic, err := h.service.Call(c.Request.Context(), middleware.Actor(c), id, cmd)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := clinicID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	clinic, err := h.service.SetStatus(c.Request.Context(), middleware.Actor(c), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) ResetAll(c *gin.Context) {
	clinics, err := h.service.ResetAll(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinics)
}

func clinicID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid clinic ID", err))
		return uuid.Nil, false
	}
	return id, true
}
