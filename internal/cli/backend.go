package cli

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue/config"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/internal/repository/memory"
	"github.com/jwalitptl/clinic-queue/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue/internal/service/display"
	"github.com/jwalitptl/clinic-queue/internal/service/queue"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/security"
)

// Backend is an open store plus the services commands drive.
type Backend struct {
	Store   repository.Store
	DB      *sqlx.DB // nil for the memory store
	Queue   *queue.Service
	Display *display.Service
	Log     *logger.Logger

	closer io.Closer
}

// Opener connects to the store a configuration names.
type Opener func(cfg *config.Config) (*Backend, error)

func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// OpenStore is the default Opener. Logs go to stderr so text and json
// output on stdout stays clean.
func OpenStore(cfg *config.Config) (*Backend, error) {
	logCfg := cfg.ToLoggerConfig()
	logCfg.Output = stderr
	log := logger.NewLogger(logCfg)

	if cfg.Store == config.StoreMemory {
		return NewBackend(memory.NewStore(nil).Repositories(), nil, log), nil
	}
	db, err := postgres.NewDB(cfg.Database.ToPostgresConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	b := NewBackend(postgres.NewStore(db), db, log)
	b.closer = db
	return b, nil
}

// NewBackend builds the services over an already open store.
func NewBackend(store repository.Store, db *sqlx.DB, log *logger.Logger) *Backend {
	if log == nil {
		log = logger.Nop()
	}
	hasher := security.NewBcryptHasher(0)
	return &Backend{
		Store:   store,
		DB:      db,
		Queue:   queue.NewService(store.Clinics, store.Outbox, hasher, queue.Config{}, log, nil),
		Display: display.NewService(store.DisplayConfig, store.Screens, store.Doctors, hasher, log),
		Log:     log,
	}
}
