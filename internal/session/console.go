package session

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/notification"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

// InboxLoader returns the login backfill for a console.
type InboxLoader interface {
	Inbox(ctx context.Context, aud notification.Audience) (*notification.Inbox, error)
}

type ConsoleSnapshot struct {
	Reason   string                `json:"reason"`
	Clinics  []*model.Clinic       `json:"clinics"`
	Inbound  []*model.Notification `json:"inbound"`
	Outbound []*model.Notification `json:"outbound"`
}

type NotificationFrame struct {
	Notification *model.Notification   `json:"notification"`
	Delivery     notification.Delivery `json:"delivery"`
}

// Console serves a clinic console or the admin console.
type Console struct {
	aud     notification.Audience
	feed    feed.Subscriber
	snap    Snapshotter
	inboxes InboxLoader
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewConsole(aud notification.Audience, sub feed.Subscriber, snap Snapshotter, inboxes InboxLoader, cfg Config, log *logger.Logger, m *metrics.Metrics) *Console {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Console{
		aud:     aud,
		feed:    sub,
		snap:    snap,
		inboxes: inboxes,
		cfg:     cfg.withDefaults(),
		log:     log.With("session", string(aud.Role)).With("label", aud.Label),
		metrics: m,
	}
}

// Run blocks until ctx is done, the sink fails or the feed closes.
func (c *Console) Run(ctx context.Context, sink Sink) error {
	if c.aud.Role != model.RoleClinic && c.aud.Role != model.RoleAdmin {
		return fmt.Errorf("console session for role %q", c.aud.Role)
	}
	gauge := c.metrics.SessionsActive.WithLabelValues(string(c.aud.Role))
	gauge.Inc()
	defer gauge.Dec()

	subs, cancel, err := subscribeAll(c.feed, model.CollectionClinics, model.CollectionNotifications)
	if err != nil {
		return err
	}
	defer cancel()
	clinics, notes := subs[0], subs[1]

	inbox, err := c.inboxes.Inbox(ctx, c.aud)
	if err != nil {
		return fmt.Errorf("failed to load inbox: %w", err)
	}

	out := newEmitter(sink)
	if err := c.resync(ctx, out, inbox, "initial"); err != nil {
		return err
	}

	slot := notification.NewBannerSlot()
	defer slot.Stop()
	wd := feed.NewWatchdog(c.cfg.HeartbeatTimeout)
	defer wd.Stop()
	var gate resyncGate

	c.log.Info("console session started")
	defer c.log.Info("console session ended")

	for {
		var ev model.ChangeEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case ev, ok = <-clinics.Events():
		case ev, ok = <-notes.Events():
		case <-wd.C():
			c.log.Warn("feed heartbeat lost, resyncing")
			if err := c.resync(ctx, out, inbox, "heartbeat_timeout"); err != nil {
				return err
			}
			wd.Kick()
			continue
		case <-slot.C():
			if b, ok := slot.Expire(); ok {
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
				if err := c.resync(ctx, out, inbox, ev.Reason); err != nil {
					return err
				}
			}
		case ev.Collection == model.CollectionClinics:
			c.onClinic(out, ev)
		case ev.Collection == model.CollectionNotifications:
			c.onNotification(out, slot, inbox, ev)
		}
		if out.err != nil {
			return out.err
		}
	}
}

// resync reloads the clinic snapshot. The notification logs are kept as
// they are; missed notifications are not replayed.
func (c *Console) resync(ctx context.Context, out *emitter, inbox *notification.Inbox, reason string) error {
	list, err := c.snap.Clinics(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clinics: %w", err)
	}
	out.send(FrameSnapshot, ConsoleSnapshot{
		Reason:   reason,
		Clinics:  list,
		Inbound:  inbox.Inbound(),
		Outbound: inbox.Outbound(),
	})
	return out.err
}

func (c *Console) onClinic(out *emitter, ev model.ChangeEvent) {
	if ev.Type == model.ChangeDelete {
		out.send(FrameClinicRemoved, removed{ID: ev.EntityID})
		return
	}
	change, err := feed.Decode[model.Clinic](ev)
	if err != nil || change.New == nil {
		c.log.Error(err, "dropping undecodable clinic event", "entity_id", ev.EntityID)
		return
	}
	out.send(FrameClinic, change.New)
}

func (c *Console) onNotification(out *emitter, slot *notification.BannerSlot, inbox *notification.Inbox, ev model.ChangeEvent) {
	if ev.Type != model.ChangeInsert {
		return
	}
	change, err := feed.Decode[model.Notification](ev)
	if err != nil || change.New == nil {
		c.log.Error(err, "dropping undecodable notification", "entity_id", ev.EntityID)
		return
	}
	n := change.New
	d := inbox.Add(n)
	if !d.Matched() {
		return
	}
	out.send(FrameNotification, NotificationFrame{Notification: n, Delivery: d})
	if d.Banner {
		out.send(FrameBanner, slot.ShowNotification(n))
	}
}
