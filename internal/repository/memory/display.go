package memory

import (
	"context"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/patch"
)

type displayConfigRepository struct {
	s *Store
}

func (r *displayConfigRepository) Get(ctx context.Context) (*model.DisplayConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cfg := r.s.display
	return &cfg, nil
}

func (r *displayConfigRepository) Update(ctx context.Context, p *model.DisplayConfigPatch) (*model.DisplayConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.writeErr != nil {
		return nil, errors.Unavailable("failed to update display config", r.s.writeErr)
	}
	old := r.s.display
	next := r.s.display
	if _, err := patch.Apply(&next, p); err != nil {
		return nil, errors.BadRequest("invalid display config patch", err)
	}
	next.UpdatedAt = r.s.now()
	r.s.display = next

	r.s.emit(model.CollectionDisplayConfig, model.ChangeUpdate, "1", &old, &next, p)
	out := next
	return &out, nil
}
