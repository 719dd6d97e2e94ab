// Package feed fans committed store changes out to per-client subscriptions.
//
// Delivery never blocks the publisher. A subscriber whose buffer is full
// loses the event and is marked lagged; the next time it has room it
// receives a RESYNC marker and must reload its snapshots. Events for one
// entity are delivered in publish order as long as the producer publishes
// them in commit order.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
)

var ErrClosed = errors.New("feed: hub is closed")

const (
	ResyncLagged    = "lagged"
	ResyncReconnect = "reconnect"
	ResyncTruncated = "truncated"
)

type Config struct {
	BufferSize        int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        64,
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  15 * time.Second,
	}
}

// Predicate filters data events. Control events bypass it.
type Predicate func(model.ChangeEvent) bool

// Subscriber is the subscription side of the durable state store contract.
type Subscriber interface {
	Subscribe(collection model.Collection, match Predicate) (*Subscription, error)
}

type Hub struct {
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	seq atomic.Uint64
}

func NewHub(cfg Config, log *logger.Logger, m *metrics.Metrics) *Hub {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Hub{
		cfg:     cfg,
		log:     log,
		metrics: m,
		subs:    make(map[uint64]*Subscription),
	}
}

func (h *Hub) Config() Config { return h.cfg }

// Subscribe opens a stream of changes for collection. An empty collection
// receives every collection. match may be nil.
func (h *Hub) Subscribe(collection model.Collection, match Predicate) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	h.nextID++
	sub := &Subscription{
		id:         h.nextID,
		hub:        h,
		collection: collection,
		match:      match,
		ch:         make(chan model.ChangeEvent, h.cfg.BufferSize),
	}
	h.subs[sub.id] = sub
	h.metrics.FeedSubscriptions.Inc()
	return sub, nil
}

// Publish delivers ev to every matching subscription without blocking.
func (h *Hub) Publish(ev model.ChangeEvent) {
	if ev.Seq == 0 {
		ev.Seq = h.seq.Add(1)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	if !ev.Type.IsControl() {
		h.metrics.FeedPublished.WithLabelValues(string(ev.Collection)).Inc()
	}

	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		if !sub.deliver(ev) {
			h.metrics.FeedDropped.WithLabelValues(string(ev.Collection)).Inc()
		}
	}
}

// Resync tells every subscriber to reload its snapshots.
func (h *Hub) Resync(reason string) {
	h.metrics.FeedResyncs.WithLabelValues(reason).Inc()
	h.log.Info("feed resync requested", "reason", reason)
	h.Publish(model.ChangeEvent{Type: model.ChangeResync, Reason: reason})
}

func (h *Hub) Heartbeat() {
	h.Publish(model.ChangeEvent{Type: model.ChangeHeartbeat})
}

// Run emits heartbeats until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Heartbeat()
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls fail and Publish
// becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.closeLocked()
		delete(h.subs, id)
		h.metrics.FeedSubscriptions.Dec()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	sub.closeLocked()
	h.metrics.FeedSubscriptions.Dec()
}
