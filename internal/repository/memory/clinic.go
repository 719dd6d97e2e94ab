package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/patch"
)

type clinicRepository struct {
	s *Store
}

func copyClinic(c *model.Clinic) *model.Clinic {
	out := *c
	if c.LinkedScreenIDs != nil {
		out.LinkedScreenIDs = append(pq.StringArray(nil), c.LinkedScreenIDs...)
	}
	if c.LastCalledAt != nil {
		at := *c.LastCalledAt
		out.LastCalledAt = &at
	}
	return &out
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to create clinic", r.s.writeErr)
	}
	if clinic.ID == uuid.Nil {
		clinic.ID = uuid.New()
	}
	if clinic.Status == "" {
		clinic.Status = model.ClinicStatusActive
	}
	for _, c := range r.s.clinics {
		if c.SequenceNumber == clinic.SequenceNumber {
			return errors.Conflict("clinic sequence number already in use", nil)
		}
	}
	now := r.s.now()
	clinic.CreatedAt = now
	clinic.UpdatedAt = now
	clinic.Version = 1

	stored := copyClinic(clinic)
	r.s.clinics[clinic.ID.String()] = stored
	r.s.emit(model.CollectionClinics, model.ChangeInsert, clinic.ID.String(), nil, stored, nil)
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clinics[id.String()]
	if !ok {
		return nil, errors.NotFound("clinic", nil)
	}
	return copyClinic(c), nil
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Clinic, 0, len(r.s.clinics))
	for _, c := range r.s.clinics {
		out = append(out, copyClinic(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out, nil
}

func (r *clinicRepository) Update(ctx context.Context, id uuid.UUID, p *model.ClinicPatch, expectedVersion int64) (*model.Clinic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return nil, errors.Unavailable("failed to update clinic", r.s.writeErr)
	}
	c, ok := r.s.clinics[id.String()]
	if !ok {
		return nil, errors.NotFound("clinic", nil)
	}
	if expectedVersion != 0 && c.Version != expectedVersion {
		return nil, errors.Conflict("clinic was modified concurrently", repository.ErrVersionConflict)
	}

	old := copyClinic(c)
	next := copyClinic(c)
	if _, err := patch.Apply(next, p); err != nil {
		return nil, errors.BadRequest("invalid clinic patch", err)
	}
	next.Version++
	next.UpdatedAt = r.s.now()

	r.s.clinics[id.String()] = next
	r.s.emit(model.CollectionClinics, model.ChangeUpdate, id.String(), old, next, p)
	return copyClinic(next), nil
}

func (r *clinicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to delete clinic", r.s.writeErr)
	}
	c, ok := r.s.clinics[id.String()]
	if !ok {
		return errors.NotFound("clinic", nil)
	}
	delete(r.s.clinics, id.String())
	r.s.emit(model.CollectionClinics, model.ChangeDelete, id.String(), c, nil, nil)
	return nil
}
