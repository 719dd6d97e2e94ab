// Package memory is an in-process implementation of the repositories. It
// publishes a change event for every committed write while still holding
// the store lock, so subscribers see each entity's changes in commit order.
package memory

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
)

// Publisher receives committed changes. *feed.Hub satisfies it.
type Publisher interface {
	Publish(ev model.ChangeEvent)
}

type Store struct {
	mu  sync.Mutex
	pub Publisher
	now func() time.Time

	clinics       map[string]*model.Clinic
	notifications []*model.Notification
	display       model.DisplayConfig
	screens       map[string]*model.Screen
	doctors       map[string]*model.Doctor
	outbox        map[string]*model.OutboxEvent

	writeErr error
}

func NewStore(pub Publisher) *Store {
	return &Store{
		pub:     pub,
		now:     func() time.Time { return time.Now().UTC() },
		clinics: make(map[string]*model.Clinic),
		display: model.DefaultDisplayConfig(),
		screens: make(map[string]*model.Screen),
		doctors: make(map[string]*model.Doctor),
		outbox:  make(map[string]*model.OutboxEvent),
	}
}

// Repositories returns every repository backed by this store.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Clinics:       &clinicRepository{s},
		Notifications: &notificationRepository{s},
		DisplayConfig: &displayConfigRepository{s},
		Screens:       &screenRepository{s},
		Doctors:       &doctorRepository{s},
		Outbox:        &outboxRepository{s},
	}
}

// FailWrites makes every later write return err. Pass nil to recover.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// emit must be called with s.mu held.
func (s *Store) emit(collection model.Collection, typ model.ChangeType, id string, old, new, patch interface{}) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(model.ChangeEvent{
		Collection: collection,
		Type:       typ,
		EntityID:   id,
		Old:        marshal(old),
		New:        marshal(new),
		Patch:      marshal(patch),
		At:         s.now(),
	})
}

func marshal(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	return raw
}
