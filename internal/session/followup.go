package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/followup"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

type Position struct {
	ClinicID      uuid.UUID      `json:"clinic_id"`
	ClinicName    string         `json:"clinic_name"`
	Ticket        int            `json:"ticket"`
	CurrentNumber int            `json:"current_number"`
	Remaining     int            `json:"remaining"`
	State         followup.State `json:"state"`
}

// FollowUp serves a patient watching one clinic. It only reads.
type FollowUp struct {
	clinicID uuid.UUID
	ticket   int
	feed     feed.Subscriber
	snap     Snapshotter
	cfg      Config
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewFollowUp(clinicID uuid.UUID, ticket int, sub feed.Subscriber, snap Snapshotter, cfg Config, log *logger.Logger, m *metrics.Metrics) *FollowUp {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &FollowUp{
		clinicID: clinicID,
		ticket:   ticket,
		feed:     sub,
		snap:     snap,
		cfg:      cfg.withDefaults(),
		log:      log.With("session", "followup").With("clinic_id", clinicID.String()),
		metrics:  m,
	}
}

func (f *FollowUp) Run(ctx context.Context, sink Sink) error {
	tracker, err := followup.NewTracker(f.clinicID, f.ticket)
	if err != nil {
		return err
	}
	gauge := f.metrics.SessionsActive.WithLabelValues("followup")
	gauge.Inc()
	defer gauge.Dec()

	sub, err := f.feed.Subscribe(model.CollectionClinics, feed.ByEntity(f.clinicID.String()))
	if err != nil {
		return err
	}
	defer sub.Cancel()

	out := newEmitter(sink)
	if err := f.resync(ctx, out, tracker); err != nil {
		return err
	}

	wd := feed.NewWatchdog(f.cfg.HeartbeatTimeout)
	defer wd.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wd.C():
			if err := f.resync(ctx, out, tracker); err != nil {
				return err
			}
			wd.Kick()
		case ev, ok := <-sub.Events():
			if !ok {
				return feed.ErrClosed
			}
			wd.Kick()
			switch ev.Type {
			case model.ChangeHeartbeat:
				continue
			case model.ChangeResync:
				if err := f.resync(ctx, out, tracker); err != nil {
					return err
				}
				continue
			case model.ChangeDelete:
				out.send(FrameClinicRemoved, removed{ID: ev.EntityID})
				return out.err
			}

			change, err := feed.Decode[model.Clinic](ev)
			if err != nil || change.New == nil {
				f.log.Error(err, "dropping undecodable clinic event")
				continue
			}
			f.observe(out, tracker, change.New)
			if out.err != nil {
				return out.err
			}
		}
	}
}

func (f *FollowUp) resync(ctx context.Context, out *emitter, tracker *followup.Tracker) error {
	clinics, err := f.snap.Clinics(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clinics: %w", err)
	}
	for _, c := range clinics {
		if c.ID == f.clinicID {
			f.observe(out, tracker, c)
			return out.err
		}
	}
	return errors.NotFound("clinic", nil)
}

// observe always reports the position and adds a followup frame when the
// state changed.
func (f *FollowUp) observe(out *emitter, tracker *followup.Tracker, c *model.Clinic) {
	step, changed := tracker.Observe(c)
	out.send(FramePosition, Position{
		ClinicID:      c.ID,
		ClinicName:    c.Name,
		Ticket:        tracker.Ticket(),
		CurrentNumber: c.CurrentNumber,
		Remaining:     tracker.Remaining(),
		State:         tracker.State(),
	})
	if changed {
		out.send(FrameFollowUp, step)
	}
}
