package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

// ErrVersionConflict is wrapped in a Conflict AppError when an update
// carried an expected version that no longer matches the row.
var ErrVersionConflict = errors.New("version conflict")

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		// List returns clinics ordered by sequence number.
		List(ctx context.Context) ([]*model.Clinic, error)
		// Update applies a partial patch. expectedVersion 0 means last write
		// wins; any other value must match the stored version.
		Update(ctx context.Context, id uuid.UUID, patch *model.ClinicPatch, expectedVersion int64) (*model.Clinic, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// NotificationRepository is append-only.
	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		// ListInbound returns notifications addressed to the clinic plus
		// every emergency, newest first.
		ListInbound(ctx context.Context, clinicID uuid.UUID, limit int) ([]*model.Notification, error)
		// ListAdmin returns notifications flagged for the admin plus every
		// emergency, newest first.
		ListAdmin(ctx context.Context, limit int) ([]*model.Notification, error)
		ListOutbound(ctx context.Context, fromLabel string, limit int) ([]*model.Notification, error)
	}

	DisplayConfigRepository interface {
		Get(ctx context.Context) (*model.DisplayConfig, error)
		Update(ctx context.Context, patch *model.DisplayConfigPatch) (*model.DisplayConfig, error)
	}

	ScreenRepository interface {
		Create(ctx context.Context, screen *model.Screen) error
		Get(ctx context.Context, id uuid.UUID) (*model.Screen, error)
		List(ctx context.Context) ([]*model.Screen, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context) ([]*model.Doctor, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store groups the repositories a server process needs.
type Store struct {
	Clinics       ClinicRepository
	Notifications NotificationRepository
	DisplayConfig DisplayConfigRepository
	Screens       ScreenRepository
	Doctors       DoctorRepository
	Outbox        OutboxRepository
}
