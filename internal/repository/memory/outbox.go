package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to create outbox event", r.s.writeErr)
	}
	event.ID = uuid.New()
	event.CreatedAt = r.s.now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	stored := *event
	r.s.outbox[event.ID.String()] = &stored
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var due []*model.OutboxEvent
	for _, ev := range r.s.outbox {
		switch ev.Status {
		case model.OutboxStatusPending, model.OutboxStatusRetry:
			if ev.RetryAt != nil && ev.RetryAt.After(now) {
				continue
			}
		case model.OutboxStatusProcessing:
			if now.Sub(ev.UpdatedAt) < model.OutboxClaimLease {
				continue
			}
		default:
			continue
		}
		due = append(due, ev)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, ev := range due {
		ev.Status = model.OutboxStatusProcessing
		ev.UpdatedAt = now
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ev, ok := r.s.outbox[id.String()]
	if !ok {
		return errors.NotFound("outbox event", nil)
	}
	now := r.s.now()
	ev.Status = status
	ev.ErrorMessage = errorMessage
	ev.RetryAt = retryAt
	ev.UpdatedAt = now
	if status == model.OutboxStatusRetry {
		ev.RetryCount++
	}
	if status == model.OutboxStatusProcessed {
		ev.ProcessedAt = &now
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, ev := range r.s.outbox {
		if ev.Status == model.OutboxStatusProcessed && ev.ProcessedAt != nil && ev.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}
