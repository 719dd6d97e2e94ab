package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
)

// ChangeChannel is the NOTIFY channel written by the notify_queue_change
// trigger.
const ChangeChannel = "queue_changes"

// NotifyPayloadLimit is the largest payload pg_notify accepts. The trigger
// marks anything larger as truncated.
const NotifyPayloadLimit = 8000

// changeNotification is a change as written by the trigger.
type changeNotification struct {
	model.ChangeEvent
	Truncated bool `json:"truncated"`
}

// Sink receives decoded changes. *feed.Hub satisfies it.
type Sink interface {
	Publish(ev model.ChangeEvent)
	Resync(reason string)
}

// ChangeListener turns LISTEN/NOTIFY traffic into hub events. NOTIFY is
// delivered in commit order on a single connection, which gives the
// per-entity ordering subscribers rely on.
type ChangeListener struct {
	dsn          string
	sink         Sink
	log          *logger.Logger
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
}

func NewChangeListener(dsn string, sink Sink, log *logger.Logger) *ChangeListener {
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeListener{
		dsn:          dsn,
		sink:         sink,
		log:          log.With("component", "change_listener"),
		minReconnect: time.Second,
		maxReconnect: 30 * time.Second,
		pingInterval: 60 * time.Second,
	}
}

// Run listens until ctx is done.
func (l *ChangeListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.minReconnect, l.maxReconnect, l.onEvent)
	defer listener.Close()

	if err := listener.Listen(ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	l.log.Info("listening for store changes", "channel", ChangeChannel)

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			l.dispatch(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warn("listener ping failed", "error", err.Error())
				}
			}()
		}
	}
}

// dispatch handles one notification. pq sends nil after re-establishing a
// lost connection; anything committed in between was missed.
func (l *ChangeListener) dispatch(n *pq.Notification) {
	if n == nil {
		l.sink.Resync(feed.ResyncReconnect)
		return
	}

	var msg changeNotification
	if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
		l.log.Error(err, "dropping undecodable change notification")
		return
	}
	ev := msg.ChangeEvent
	if ev.Collection == "" || ev.Type.IsControl() {
		l.log.Warn("dropping change notification without collection", "type", string(ev.Type))
		return
	}
	if msg.Truncated {
		l.log.Warn("change notification was truncated, resyncing",
			"collection", string(ev.Collection), "entity_id", ev.EntityID)
		l.sink.Resync(feed.ResyncTruncated)
		return
	}
	l.sink.Publish(ev)
}

func (l *ChangeListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.log.Debug("listener connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn("listener disconnected", "error", errString(err))
	case pq.ListenerEventReconnected:
		l.log.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Warn("listener connection attempt failed", "error", errString(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
