package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

type screenRepository struct {
	BaseRepository
}

func NewScreenRepository(base BaseRepository) repository.ScreenRepository {
	return &screenRepository{base}
}

func (r *screenRepository) Create(ctx context.Context, screen *model.Screen) error {
	query := `
		INSERT INTO screens (id, sequence_number, name, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if screen.ID == uuid.Nil {
		screen.ID = uuid.New()
	}
	screen.CreatedAt = time.Now().UTC()
	screen.UpdatedAt = screen.CreatedAt

	if _, err := r.db.ExecContext(ctx, query,
		screen.ID, screen.SequenceNumber, screen.Name, screen.Secret, screen.CreatedAt, screen.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	return nil
}

func (r *screenRepository) Get(ctx context.Context, id uuid.UUID) (*model.Screen, error) {
	query := `SELECT id, sequence_number, name, secret, created_at, updated_at FROM screens WHERE id = $1`

	var screen model.Screen
	if err := r.db.GetContext(ctx, &screen, query, id); err != nil {
		if nf := notFound("screen", err); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get screen: %w", err)
	}
	return &screen, nil
}

func (r *screenRepository) List(ctx context.Context) ([]*model.Screen, error) {
	query := `SELECT id, sequence_number, name, secret, created_at, updated_at FROM screens ORDER BY sequence_number ASC`

	var screens []*model.Screen
	if err := r.db.SelectContext(ctx, &screens, query); err != nil {
		return nil, fmt.Errorf("failed to list screens: %w", err)
	}
	return screens, nil
}

func (r *screenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.BaseRepository, "screens", "screen", id)
}

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, d *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, sequence_number, name, specialty, image_ref, working_days, phone, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt

	if _, err := r.db.ExecContext(ctx, query,
		d.ID, d.SequenceNumber, d.Name, d.Specialty, d.ImageRef, d.WorkingDays, d.Phone, d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `
		SELECT id, sequence_number, name, specialty, image_ref, working_days, phone, created_at, updated_at
		FROM doctors ORDER BY sequence_number ASC
	`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.BaseRepository, "doctors", "doctor", id)
}

// table is always a package constant, never caller input.
func deleteByID(ctx context.Context, r BaseRepository, table, resource string, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", resource, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.NotFound(resource, nil)
	}
	return nil
}
