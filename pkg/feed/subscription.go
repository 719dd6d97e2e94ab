package feed

import (
	"sync"
	"sync/atomic"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

// Subscription is one consumer's view of the hub. Channel sends happen
// under the hub read lock and closing under the write lock, so a send
// never races a close.
type Subscription struct {
	id         uint64
	hub        *Hub
	collection model.Collection
	match      Predicate
	ch         chan model.ChangeEvent

	lagged  atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
	done    bool
}

// Events yields changes until Cancel is called or the hub closes.
func (s *Subscription) Events() <-chan model.ChangeEvent {
	return s.ch
}

// Cancel releases the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Dropped returns how many events were lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) wants(ev model.ChangeEvent) bool {
	if ev.Type.IsControl() {
		return true
	}
	if s.collection != "" && s.collection != ev.Collection {
		return false
	}
	return s.match == nil || s.match(ev)
}

// deliver must be called with the hub read lock held.
func (s *Subscription) deliver(ev model.ChangeEvent) bool {
	if s.lagged.Load() {
		marker := model.ChangeEvent{Seq: ev.Seq, Type: model.ChangeResync, Reason: ResyncLagged, At: ev.At}
		select {
		case s.ch <- marker:
			s.lagged.Store(false)
		default:
			s.dropped.Add(1)
			return false
		}
		if ev.Type == model.ChangeResync {
			return true
		}
	}

	select {
	case s.ch <- ev:
		return true
	default:
		s.lagged.Store(true)
		s.dropped.Add(1)
		return false
	}
}

// closeLocked must be called with the hub write lock held.
func (s *Subscription) closeLocked() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
