package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
)

const notificationColumns = `id, created_at, from_label, to_clinic_id, to_admin, type, message, patient_number`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.CreatedAt,
		n.FromLabel,
		n.ToClinicID,
		n.ToAdmin,
		n.Type,
		n.Message,
		n.PatientNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) list(ctx context.Context, where string, args ...interface{}) ([]*model.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		notificationColumns, where, len(args))

	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) ListInbound(ctx context.Context, clinicID uuid.UUID, limit int) ([]*model.Notification, error) {
	return r.list(ctx, `(to_clinic_id = $1 OR type = 'emergency')`, clinicID, limit)
}

func (r *notificationRepository) ListAdmin(ctx context.Context, limit int) ([]*model.Notification, error) {
	return r.list(ctx, `(to_admin OR type = 'emergency')`, limit)
}

func (r *notificationRepository) ListOutbound(ctx context.Context, fromLabel string, limit int) ([]*model.Notification, error) {
	return r.list(ctx, `from_label = $1`, fromLabel, limit)
}
