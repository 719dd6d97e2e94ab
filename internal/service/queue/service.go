package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/metrics"
	"github.com/jwalitptl/clinic-queue/pkg/security"
)

type Servicer interface {
	Call(ctx context.Context, actor model.Actor, clinicID uuid.UUID, cmd Command) (*model.Clinic, error)
	SetStatus(ctx context.Context, actor model.Actor, clinicID uuid.UUID, status model.ClinicStatus) (*model.Clinic, error)
	ResetAll(ctx context.Context, actor model.Actor) ([]*model.Clinic, error)
	ListClinics(ctx context.Context) ([]*model.Clinic, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	CreateClinic(ctx context.Context, req *model.CreateClinicRequest) (*model.Clinic, error)
}

type Config struct {
	// OptimisticLocking rejects a call when the clinic changed between
	// read and write instead of letting the last write win.
	OptimisticLocking bool
}

type Service struct {
	clinics repository.ClinicRepository
	outbox  repository.OutboxRepository
	hasher  security.SecretHasher
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics

	now      func() time.Time
	newToken func() string
}

func NewService(
	clinics repository.ClinicRepository,
	outbox repository.OutboxRepository,
	hasher security.SecretHasher,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Service{
		clinics:  clinics,
		outbox:   outbox,
		hasher:   hasher,
		cfg:      cfg,
		log:      log.With("service", "queue"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

// Call applies cmd to the clinic and issues a new call token. Nothing is
// reported as called unless the store confirmed the write.
func (s *Service) Call(ctx context.Context, actor model.Actor, clinicID uuid.UUID, cmd Command) (*model.Clinic, error) {
	if !cmd.Action.Valid() {
		return nil, errors.BadRequest("unknown call action", nil)
	}
	if !actor.CanWriteClinic(clinicID) {
		return nil, errors.Forbidden("not allowed to call for this clinic")
	}

	current, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	next, err := Transition(current.CurrentNumber, cmd)
	if err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	token := s.newToken()
	now := s.now()
	patch := &model.ClinicPatch{
		CurrentNumber: &next,
		CallToken:     &token,
		LastCalledAt:  &now,
	}

	version := cmd.ExpectedVersion
	if version == 0 && s.cfg.OptimisticLocking {
		version = current.Version
	}

	updated, err := s.clinics.Update(ctx, clinicID, patch, version)
	if err != nil {
		s.metrics.CallsFailed.WithLabelValues(string(cmd.Action)).Inc()
		s.log.Error(err, "call failed",
			"clinic_id", clinicID.String(),
			"action", string(cmd.Action),
			"actor", actor.Label)
		return nil, asAppError("failed to place call", err)
	}

	s.metrics.CallsIssued.WithLabelValues(string(cmd.Action)).Inc()
	s.log.Info("call placed",
		"clinic_id", clinicID.String(),
		"action", string(cmd.Action),
		"number", updated.CurrentNumber,
		"actor", actor.Label)

	s.recordCall(ctx, updated, actor, cmd.Action)
	return updated, nil
}

// SetStatus toggles active/paused. The call token is left alone so
// displays do not announce anything.
func (s *Service) SetStatus(ctx context.Context, actor model.Actor, clinicID uuid.UUID, status model.ClinicStatus) (*model.Clinic, error) {
	if !status.Valid() {
		return nil, errors.BadRequest("invalid clinic status", nil)
	}
	if !actor.CanWriteClinic(clinicID) {
		return nil, errors.Forbidden("not allowed to change this clinic")
	}

	updated, err := s.clinics.Update(ctx, clinicID, &model.ClinicPatch{Status: &status}, 0)
	if err != nil {
		return nil, asAppError("failed to update clinic status", err)
	}
	return updated, nil
}

// ResetAll resets every clinic to zero, each with its own fresh token.
// Clinics that fail are reported together; the rest are still reset.
func (s *Service) ResetAll(ctx context.Context, actor model.Actor) ([]*model.Clinic, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Forbidden("only the admin can reset all clinics")
	}

	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return nil, asAppError("failed to list clinics", err)
	}

	var out []*model.Clinic
	var errs []error
	for _, c := range clinics {
		updated, err := s.Call(ctx, actor, c.ID, Command{Action: ActionReset})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, updated)
	}
	if len(errs) > 0 {
		return out, errors.Unavailable("some clinics could not be reset", stderrors.Join(errs...))
	}
	return out, nil
}

func (s *Service) ListClinics(ctx context.Context) ([]*model.Clinic, error) {
	return s.clinics.List(ctx)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return s.clinics.Get(ctx, id)
}

func (s *Service) CreateClinic(ctx context.Context, req *model.CreateClinicRequest) (*model.Clinic, error) {
	if req.SequenceNumber < 1 || req.Name == "" {
		return nil, errors.BadRequest("sequence number and name are required", nil)
	}
	hash, err := s.hasher.Hash(req.Secret)
	if err != nil {
		return nil, errors.BadRequest("invalid clinic secret", err)
	}

	screens := make(pq.StringArray, 0, len(req.LinkedScreenIDs))
	for _, id := range req.LinkedScreenIDs {
		screens = append(screens, id.String())
	}
	clinic := &model.Clinic{
		SequenceNumber:  req.SequenceNumber,
		Name:            req.Name,
		Status:          model.ClinicStatusActive,
		OperatorSecret:  hash,
		LinkedScreenIDs: screens,
	}
	if err := s.clinics.Create(ctx, clinic); err != nil {
		return nil, asAppError("failed to create clinic", err)
	}
	return clinic, nil
}

type calledPayload struct {
	model.CallEvent
	Action Action `json:"action"`
	Actor  string `json:"actor"`
}

// recordCall appends the integration event. The call already happened, so
// a failure here is logged and not returned.
func (s *Service) recordCall(ctx context.Context, c *model.Clinic, actor model.Actor, action Action) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(calledPayload{CallEvent: model.NewCallEvent(c), Action: action, Actor: actor.Label})
	if err != nil {
		s.log.Error(err, "failed to encode call event")
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{EventType: model.EventClinicCalled, Payload: payload}); err != nil {
		s.log.Error(err, "failed to record call event", "clinic_id", c.ID.String())
	}
}

func asAppError(message string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.Unavailable(message, err)
}
