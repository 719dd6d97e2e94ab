// Package session runs the per-client event loops: one goroutine per
// connected console, screen or follow-up page, selecting over its feed
// subscriptions, a heartbeat watchdog and its banner timer. Sessions turn
// change events into Frames for the client.
package session

import (
	"context"
	"time"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/edge"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
)

type FrameType string

const (
	FrameSnapshot      FrameType = "snapshot"
	FrameClinic        FrameType = "clinic"
	FrameClinicRemoved FrameType = "clinic_removed"
	FrameCall          FrameType = "call"
	FrameNotification  FrameType = "notification"
	FrameBanner        FrameType = "banner"
	FrameBannerClear   FrameType = "banner_clear"
	FrameDisplay       FrameType = "display"
	FramePlayback      FrameType = "playback"
	FrameVideo         FrameType = "video"
	FrameDoctor        FrameType = "doctor"
	FramePosition      FrameType = "position"
	FrameFollowUp      FrameType = "followup"
)

type Frame struct {
	Type FrameType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// Sink receives frames in order. An error ends the session.
type Sink func(Frame) error

// Snapshotter loads the small, bounded state a session reloads on resync.
type Snapshotter interface {
	Clinics(ctx context.Context) ([]*model.Clinic, error)
	DisplayConfig(ctx context.Context) (*model.DisplayConfig, error)
	Doctors(ctx context.Context) ([]*model.Doctor, error)
}

type Config struct {
	HeartbeatTimeout time.Duration
	RotationPeriod   time.Duration
	TokenTTL         time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout: feed.DefaultConfig().HeartbeatTimeout,
		RotationPeriod:   10 * time.Second,
		TokenTTL:         edge.DefaultTTL,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.RotationPeriod <= 0 {
		c.RotationPeriod = def.RotationPeriod
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = def.TokenTTL
	}
	return c
}

type storeSnapshot struct {
	store repository.Store
}

// NewStoreSnapshot reads snapshots straight from the repositories.
func NewStoreSnapshot(store repository.Store) Snapshotter {
	return &storeSnapshot{store: store}
}

func (s *storeSnapshot) Clinics(ctx context.Context) ([]*model.Clinic, error) {
	return s.store.Clinics.List(ctx)
}

func (s *storeSnapshot) DisplayConfig(ctx context.Context) (*model.DisplayConfig, error) {
	return s.store.DisplayConfig.Get(ctx)
}

func (s *storeSnapshot) Doctors(ctx context.Context) ([]*model.Doctor, error) {
	return s.store.Doctors.List(ctx)
}

// emitter keeps the first sink error so handlers deep in a loop iteration
// need not return one.
type emitter struct {
	sink Sink
	now  func() time.Time
	err  error
}

func newEmitter(sink Sink) *emitter {
	return &emitter{sink: sink, now: time.Now}
}

func (e *emitter) send(t FrameType, data interface{}) {
	if e.err != nil {
		return
	}
	e.err = e.sink(Frame{Type: t, Data: data, At: e.now()})
}

// resyncGate collapses the copies of one RESYNC marker that arrive on each
// of a session's subscriptions.
type resyncGate struct {
	last uint64
}

func (g *resyncGate) admit(ev model.ChangeEvent) bool {
	if ev.Seq != 0 && ev.Seq == g.last {
		return false
	}
	g.last = ev.Seq
	return true
}

func subscribeAll(sub feed.Subscriber, collections ...model.Collection) ([]*feed.Subscription, func(), error) {
	subs := make([]*feed.Subscription, 0, len(collections))
	cancel := func() {
		for _, s := range subs {
			s.Cancel()
		}
	}
	for _, c := range collections {
		s, err := sub.Subscribe(c, nil)
		if err != nil {
			cancel()
			return nil, func() {}, err
		}
		subs = append(subs, s)
	}
	return subs, cancel, nil
}

type removed struct {
	ID string `json:"id"`
}
