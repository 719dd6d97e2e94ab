// Package stream serves long-lived server-sent event streams: the raw
// change feed for display agents and rendered session frames for browser
// consoles, screens and follow-up pages.
package stream

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/middleware"
	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/notification"
	"github.com/jwalitptl/clinic-queue/internal/session"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/httputil"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

const eventChange = "change"

type Handler struct {
	feed    feed.Subscriber
	snap    session.Snapshotter
	inboxes session.InboxLoader
	cfg     session.Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewHandler(sub feed.Subscriber, snap session.Snapshotter, inboxes session.InboxLoader, cfg session.Config, log *logger.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Handler{
		feed:    sub,
		snap:    snap,
		inboxes: inboxes,
		cfg:     cfg,
		log:     log.With("handler", "stream"),
		metrics: m,
	}
}

// RegisterRoutes mounts the authenticated streams.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/feed", h.Feed)
	streams := r.Group("/streams")
	{
		streams.GET("/console", h.Console)
		streams.GET("/screen", h.Screen)
	}
}

// RegisterPublicRoutes mounts the patient follow-up stream, which needs no
// login.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/streams/followup", h.FollowUp)
}

// Feed relays every committed change, heartbeat and resync marker.
func (h *Handler) Feed(c *gin.Context) {
	sub, err := h.feed.Subscribe("", nil)
	if err != nil {
		httputil.RespondWithError(c, errors.Unavailable("change feed unavailable", err))
		return
	}
	defer sub.Cancel()

	w := newWriter(c)
	ctx := c.Request.Context()
	w.start()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := w.write(eventChange, ev); err != nil {
				return
			}
		}
	}
}

func (h *Handler) Console(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor.Role != model.RoleClinic && actor.Role != model.RoleAdmin {
		httputil.RespondWithError(c, errors.Forbidden("console streams are for clinics and the admin"))
		return
	}
	s := session.NewConsole(notification.AudienceFor(actor), h.feed, h.snap, h.inboxes, h.cfg, h.log, h.metrics)
	h.run(c, s.Run)
}

func (h *Handler) Screen(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok || claims.Role != model.RoleScreen {
		httputil.RespondWithError(c, errors.Forbidden("screen streams need a screen login"))
		return
	}
	s := session.NewScreen(claims.SubjectID, h.feed, h.snap, nil, nil, h.cfg, h.log, h.metrics)
	h.run(c, s.Run)
}

// FollowUp tracks one ticket: GET /streams/followup?clinic_id=...&ticket=23.
func (h *Handler) FollowUp(c *gin.Context) {
	clinicID, err := uuid.Parse(c.Query("clinic_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid clinic ID", err))
		return
	}
	ticket, err := strconv.Atoi(c.Query("ticket"))
	if err != nil || ticket < 1 {
		httputil.RespondWithError(c, errors.BadRequest("ticket must be a positive number", err))
		return
	}
	s := session.NewFollowUp(clinicID, ticket, h.feed, h.snap, h.cfg, h.log, h.metrics)
	h.run(c, s.Run)
}

// run drives a session on the request goroutine. Errors raised before the
// first frame become a normal error response.
func (h *Handler) run(c *gin.Context, fn func(context.Context, session.Sink) error) {
	w := newWriter(c)
	err := fn(c.Request.Context(), func(f session.Frame) error {
		w.start()
		return w.write(string(f.Type), f)
	})
	if err == nil || c.Request.Context().Err() != nil {
		return
	}
	if !w.started {
		httputil.RespondWithError(c, err)
		return
	}
	h.log.Error(err, "stream ended", "path", c.FullPath())
	_ = w.write("error", gin.H{"message": "stream ended, reconnect"})
}

type writer struct {
	c       *gin.Context
	started bool
	id      uint64
}

func newWriter(c *gin.Context) *writer {
	return &writer{c: c}
}

func (w *writer) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.c.Writer.WriteHeader(http.StatusOK)
	w.c.Writer.Flush()
}

func (w *writer) write(event string, data interface{}) error {
	if err := w.c.Request.Context().Err(); err != nil {
		return err
	}
	w.id++
	if err := sse.Encode(w.c.Writer, sse.Event{
		Id:    strconv.FormatUint(w.id, 10),
		Event: event,
		Data:  data,
	}); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
