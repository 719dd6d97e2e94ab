package display

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/display"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/httputil"
)

type Handler struct {
	service      display.Servicer
	requireAdmin gin.HandlerFunc
}

func NewHandler(service display.Servicer, requireAdmin gin.HandlerFunc) *Handler {
	return &Handler{service: service, requireAdmin: requireAdmin}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cfg := r.Group("/display-config")
	{
		cfg.GET("", h.GetConfig)
		cfg.PATCH("", h.UpdateConfig)
		cfg.PUT("/playback", h.SetPlayback)
		cfg.POST("/video/:command", h.Video)
	}

	screens := r.Group("/screens", h.requireAdmin)
	{
		screens.GET("", h.ListScreens)
		screens.POST("", h.CreateScreen)
		screens.DELETE("/:id", h.DeleteScreen)
	}

	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.POST("", h.requireAdmin, h.AddDoctor)
		doctors.DELETE("/:id", h.requireAdmin, h.DeleteDoctor)
	}
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

// UpdateConfig merges only the fields present in the body.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var p model.DisplayConfigPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	cfg, err := h.service.Update(c.Request.Context(), middleware.Actor(c), &p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

func (h *Handler) SetPlayback(c *gin.Context) {
	var req model.PlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	cfg, err := h.service.SetPlayback(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

func (h *Handler) Video(c *gin.Context) {
	cmd := model.VideoCommand(c.Param("command"))
	cfg, err := h.service.Video(c.Request.Context(), middleware.Actor(c), cmd)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

func (h *Handler) ListScreens(c *gin.Context) {
	screens, err := h.service.ListScreens(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, screens)
}

func (h *Handler) CreateScreen(c *gin.Context) {
	var req model.CreateScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	screen, err := h.service.CreateScreen(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, screen)
}

func (h *Handler) DeleteScreen(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteScreen(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) AddDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	doctor, err := h.service.AddDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, doctor)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDoctor(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid ID", err))
		return uuid.Nil, false
	}
	return id, true
}
