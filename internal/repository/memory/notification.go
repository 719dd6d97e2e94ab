package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

type notificationRepository struct {
	s *Store
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to create notification", r.s.writeErr)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = r.s.now()

	stored := *n
	r.s.notifications = append(r.s.notifications, &stored)
	r.s.emit(model.CollectionNotifications, model.ChangeInsert, n.ID.String(), nil, &stored, nil)
	return nil
}

// newest walks the log from the end and keeps items matching keep.
func (r *notificationRepository) newest(limit int, keep func(*model.Notification) bool) []*model.Notification {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		n := r.s.notifications[i]
		if keep(n) {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

func (r *notificationRepository) ListInbound(ctx context.Context, clinicID uuid.UUID, limit int) ([]*model.Notification, error) {
	return r.newest(limit, func(n *model.Notification) bool {
		return n.Type == model.NotificationEmergency || (n.ToClinicID != nil && *n.ToClinicID == clinicID)
	}), nil
}

func (r *notificationRepository) ListAdmin(ctx context.Context, limit int) ([]*model.Notification, error) {
	return r.newest(limit, func(n *model.Notification) bool {
		return n.Type == model.NotificationEmergency || n.ToAdmin
	}), nil
}

func (r *notificationRepository) ListOutbound(ctx context.Context, fromLabel string, limit int) ([]*model.Notification, error) {
	return r.newest(limit, func(n *model.Notification) bool {
		return n.FromLabel == fromLabel
	}), nil
}
