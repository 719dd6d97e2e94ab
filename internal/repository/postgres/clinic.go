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

const clinicColumns = `id, sequence_number, name, current_number, call_token, status,
	operator_secret, linked_screen_ids, last_called_at, version, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, sequence_number, name, current_number, call_token, status,
			operator_secret, linked_screen_ids, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`
	if clinic.ID == uuid.Nil {
		clinic.ID = uuid.New()
	}
	if clinic.Status == "" {
		clinic.Status = model.ClinicStatusActive
	}
	clinic.CreatedAt = time.Now().UTC()
	clinic.UpdatedAt = clinic.CreatedAt
	clinic.Version = 1

	_, err := r.db.ExecContext(ctx, query,
		clinic.ID,
		clinic.SequenceNumber,
		clinic.Name,
		clinic.CurrentNumber,
		clinic.CallToken,
		clinic.Status,
		clinic.OperatorSecret,
		clinic.LinkedScreenIDs,
		clinic.Version,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		if nf := notFound("clinic", err); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics ORDER BY sequence_number ASC`

	var clinics []*model.Clinic
	if err := r.db.SelectContext(ctx, &clinics, query); err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

func (r *clinicRepository) Update(ctx context.Context, id uuid.UUID, p *model.ClinicPatch, expectedVersion int64) (*model.Clinic, error) {
	set, args := setClause(p)
	if set != "" {
		set += ", "
	}
	query := fmt.Sprintf(`UPDATE clinics SET %sversion = version + 1, updated_at = NOW() WHERE id = $%d`, set, len(args)+1)
	args = append(args, id)
	if expectedVersion != 0 {
		query += fmt.Sprintf(` AND version = $%d`, len(args)+1)
		args = append(args, expectedVersion)
	}
	query += ` RETURNING ` + clinicColumns

	var clinic model.Clinic
	err := r.db.GetContext(ctx, &clinic, query, args...)
	if err == nil {
		return &clinic, nil
	}
	if notFound("clinic", err) == nil {
		return nil, errors.Unavailable("failed to update clinic", err)
	}
	if expectedVersion == 0 {
		return nil, errors.NotFound("clinic", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.Conflict("clinic was modified concurrently", repository.ErrVersionConflict)
}

func (r *clinicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete clinic: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("clinic", nil)
	}
	return nil
}
