package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/patch"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// NewStore wires every repository onto one connection pool.
func NewStore(db *sqlx.DB) repository.Store {
	base := NewBaseRepository(db)
	return repository.Store{
		Clinics:       NewClinicRepository(base),
		Notifications: NewNotificationRepository(base),
		DisplayConfig: NewDisplayConfigRepository(base),
		Screens:       NewScreenRepository(base),
		Doctors:       NewDoctorRepository(base),
		Outbox:        NewOutboxRepository(base),
	}
}

// setClause renders "a = $1, b = $2" for the present patch columns and
// returns the matching args. Numbering starts at 1.
func setClause(p interface{}) (string, []interface{}) {
	cols := patch.Columns(p)
	parts := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols))
	for i, c := range cols {
		parts = append(parts, fmt.Sprintf("%s = $%d", c.Name, i+1))
		args = append(args, c.Value)
	}
	return strings.Join(parts, ", "), args
}

func notFound(resource string, err error) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, err)
	}
	return nil
}
