package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/announce"
	"github.com/jwalitptl/clinic-queue/internal/service/display"
	"github.com/jwalitptl/clinic-queue/internal/service/notification"
	"github.com/jwalitptl/clinic-queue/pkg/edge"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

// Announcer starts an audio sequence without waiting for it. Starting a
// new one stops the previous; announce.Sequencer implements it.
type Announcer interface {
	Start(ctx context.Context, segments []announce.Segment) <-chan announce.Result
}

type ScreenSnapshot struct {
	Reason  string               `json:"reason"`
	Clinics []*model.Clinic      `json:"clinics"`
	Display *model.DisplayConfig `json:"display_config"`
	Doctor  *model.Doctor        `json:"doctor,omitempty"`
}

type CallFrame struct {
	model.CallEvent
	Segments []announce.Segment `json:"segments"`
}

type PlaybackFrame struct {
	Status model.VideoStatus `json:"status"`
	Muted  bool              `json:"muted"`
	Volume int               `json:"volume"`
}

type VideoFrame struct {
	Command model.VideoCommand `json:"command"`
}

// Screen serves a public display.
type Screen struct {
	id        uuid.UUID
	feed      feed.Subscriber
	snap      Snapshotter
	surface   display.Surface
	announcer Announcer
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewScreen builds a screen session. A nil surface forwards display changes
// as frames; a nil announcer leaves audio to the client.
func NewScreen(id uuid.UUID, sub feed.Subscriber, snap Snapshotter, surface display.Surface, announcer Announcer, cfg Config, log *logger.Logger, m *metrics.Metrics) *Screen {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Screen{
		id:        id,
		feed:      sub,
		snap:      snap,
		surface:   surface,
		announcer: announcer,
		cfg:       cfg.withDefaults(),
		log:       log.With("session", "screen").With("screen_id", id.String()),
		metrics:   m,
	}
}

type screenState struct {
	out      *emitter
	calls    *edge.Detector
	notes    *edge.Detector
	mirror   *display.Mirror
	rotation *display.DoctorRotation
	slot     *notification.BannerSlot
}

func (s *Screen) Run(ctx context.Context, sink Sink) error {
	gauge := s.metrics.SessionsActive.WithLabelValues(string(model.RoleScreen))
	gauge.Inc()
	defer gauge.Dec()

	subs, cancel, err := subscribeAll(s.feed,
		model.CollectionClinics,
		model.CollectionNotifications,
		model.CollectionDisplayConfig,
		model.CollectionDoctors,
	)
	if err != nil {
		return err
	}
	defer cancel()

	out := newEmitter(sink)
	surface := s.surface
	if surface == nil {
		surface = &frameSurface{out: out}
	}
	st := &screenState{
		out:      out,
		calls:    edge.NewDetector(s.cfg.TokenTTL),
		notes:    edge.NewDetector(s.cfg.TokenTTL),
		mirror:   display.NewMirror(surface, edge.NewDetector(s.cfg.TokenTTL), s.log),
		rotation: display.NewDoctorRotation(s.cfg.RotationPeriod),
		slot:     notification.NewBannerSlot(),
	}
	defer st.slot.Stop()

	if err := s.resync(ctx, st, "initial"); err != nil {
		return err
	}

	wd := feed.NewWatchdog(s.cfg.HeartbeatTimeout)
	defer wd.Stop()
	rotate := time.NewTicker(st.rotation.Period())
	defer rotate.Stop()
	var gate resyncGate

	s.log.Info("screen session started")
	defer s.log.Info("screen session ended")

	for {
		var ev model.ChangeEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case ev, ok = <-subs[0].Events():
		case ev, ok = <-subs[1].Events():
		case ev, ok = <-subs[2].Events():
		case ev, ok = <-subs[3].Events():
		case <-wd.C():
			s.log.Warn("feed heartbeat lost, resyncing")
			if err := s.resync(ctx, st, "heartbeat_timeout"); err != nil {
				return err
			}
			wd.Kick()
			continue
		case <-rotate.C:
			if d, ok := st.rotation.Advance(); ok {
				out.send(FrameDoctor, d)
			}
			if out.err != nil {
				return out.err
			}
			continue
		case <-st.slot.C():
			if b, ok := st.slot.Expire(); ok {
				out.send(FrameBannerClear, b)
			}
			if out.err != nil {
				return out.err
			}
			continue
		}
		if !ok {
			return feed.ErrClosed
		}
		wd.Kick()

		switch {
		case ev.Type == model.ChangeHeartbeat:
		case ev.Type == model.ChangeResync:
			if gate.admit(ev) {
				if err := s.resync(ctx, st, ev.Reason); err != nil {
					return err
				}
			}
		case ev.Collection == model.CollectionClinics:
			s.onClinic(ctx, st, ev)
		case ev.Collection == model.CollectionNotifications:
			s.onNotification(ctx, st, ev)
		case ev.Collection == model.CollectionDisplayConfig:
			if err := st.mirror.Handle(ev); err != nil {
				s.log.Error(err, "dropping undecodable display config event")
			}
		case ev.Collection == model.CollectionDoctors:
			if err := s.reloadDoctors(ctx, st); err != nil {
				s.log.Error(err, "failed to reload doctors")
			}
		}
		if out.err != nil {
			return out.err
		}
	}
}

// resync reloads clinics, display config and doctors. Call tokens in the
// snapshot are primed so past calls are not announced again.
func (s *Screen) resync(ctx context.Context, st *screenState, reason string) error {
	clinics, err := s.snap.Clinics(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clinics: %w", err)
	}
	cfg, err := s.snap.DisplayConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load display config: %w", err)
	}
	doctors, err := s.snap.Doctors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load doctors: %w", err)
	}

	for _, c := range clinics {
		st.calls.Prime(c.ID.String(), c.CallToken)
	}
	st.rotation.Set(doctors)
	doctor, _ := st.rotation.Current()

	st.out.send(FrameSnapshot, ScreenSnapshot{Reason: reason, Clinics: clinics, Display: cfg, Doctor: doctor})
	st.mirror.Load(*cfg)
	return st.out.err
}

func (s *Screen) onClinic(ctx context.Context, st *screenState, ev model.ChangeEvent) {
	if ev.Type == model.ChangeDelete {
		st.out.send(FrameClinicRemoved, removed{ID: ev.EntityID})
		return
	}
	change, err := feed.Decode[model.Clinic](ev)
	if err != nil || change.New == nil {
		s.log.Error(err, "dropping undecodable clinic event", "entity_id", ev.EntityID)
		return
	}
	st.out.send(FrameClinic, change.New)

	call, ok := model.DetectCall(change.Old, change.New)
	if !ok || !change.New.ShownOn(s.id) || !st.calls.Observe(ev.EntityID, call.CallToken) {
		return
	}
	segments := announce.Plan(call)
	st.out.send(FrameCall, CallFrame{CallEvent: call, Segments: segments})
	st.out.send(FrameBanner, st.slot.ShowCall(call))
	if s.announcer != nil {
		s.announcer.Start(ctx, segments)
	}
}

func (s *Screen) onNotification(ctx context.Context, st *screenState, ev model.ChangeEvent) {
	if ev.Type != model.ChangeInsert {
		return
	}
	change, err := feed.Decode[model.Notification](ev)
	if err != nil || change.New == nil {
		s.log.Error(err, "dropping undecodable notification", "entity_id", ev.EntityID)
		return
	}
	n := change.New
	if !notification.Route(n, notification.ScreenAudience(s.id)).Banner {
		return
	}
	// A redelivered insert shows the same banner only once.
	if !st.notes.Observe(string(model.CollectionNotifications), n.ID.String()) {
		return
	}
	st.out.send(FrameBanner, st.slot.ShowNotification(n))
	if s.announcer != nil {
		s.announcer.Start(ctx, announce.Chime(model.ToneFor(n.Type)))
	}
}

func (s *Screen) reloadDoctors(ctx context.Context, st *screenState) error {
	doctors, err := s.snap.Doctors(ctx)
	if err != nil {
		return err
	}
	st.rotation.Set(doctors)
	if d, ok := st.rotation.Current(); ok {
		st.out.send(FrameDoctor, d)
	}
	return nil
}

// frameSurface forwards display changes to the client as frames.
type frameSurface struct {
	out *emitter
}

func (f *frameSurface) SetPlayback(status model.VideoStatus, muted bool, volume int) {
	f.out.send(FramePlayback, PlaybackFrame{Status: status, Muted: muted, Volume: volume})
}

func (f *frameSurface) Next() {
	f.out.send(FrameVideo, VideoFrame{Command: model.VideoNext})
}

func (f *frameSurface) Previous() {
	f.out.send(FrameVideo, VideoFrame{Command: model.VideoPrevious})
}

func (f *frameSurface) Restyle(cfg model.DisplayConfig) {
	f.out.send(FrameDisplay, cfg)
}
