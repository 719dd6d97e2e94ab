package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
)

type screenRepository struct {
	s *Store
}

func (r *screenRepository) Create(ctx context.Context, screen *model.Screen) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to create screen", r.s.writeErr)
	}
	if screen.ID == uuid.Nil {
		screen.ID = uuid.New()
	}
	now := r.s.now()
	screen.CreatedAt, screen.UpdatedAt = now, now

	stored := *screen
	r.s.screens[screen.ID.String()] = &stored
	r.s.emit(model.CollectionScreens, model.ChangeInsert, screen.ID.String(), nil, &stored, nil)
	return nil
}

func (r *screenRepository) Get(ctx context.Context, id uuid.UUID) (*model.Screen, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, ok := r.s.screens[id.String()]
	if !ok {
		return nil, errors.NotFound("screen", nil)
	}
	out := *sc
	return &out, nil
}

func (r *screenRepository) List(ctx context.Context) ([]*model.Screen, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Screen, 0, len(r.s.screens))
	for _, sc := range r.s.screens {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (r *screenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sc, ok := r.s.screens[id.String()]
	if !ok {
		return errors.NotFound("screen", nil)
	}
	delete(r.s.screens, id.String())
	r.s.emit(model.CollectionScreens, model.ChangeDelete, id.String(), sc, nil, nil)
	return nil
}

type doctorRepository struct {
	s *Store
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return errors.Unavailable("failed to create doctor", r.s.writeErr)
	}
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	now := r.s.now()
	doctor.CreatedAt, doctor.UpdatedAt = now, now

	stored := *doctor
	r.s.doctors[doctor.ID.String()] = &stored
	r.s.emit(model.CollectionDoctors, model.ChangeInsert, doctor.ID.String(), nil, &stored, nil)
	return nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[id.String()]
	if !ok {
		return errors.NotFound("doctor", nil)
	}
	delete(r.s.doctors, id.String())
	r.s.emit(model.CollectionDoctors, model.ChangeDelete, id.String(), d, nil, nil)
	return nil
}
