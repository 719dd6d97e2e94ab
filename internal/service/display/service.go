package display

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/patch"
	"github.com/jwalitptl/clinic-queue/pkg/security"
	"github.com/jwalitptl/clinic-queue/pkg/validator"
)

type Servicer interface {
	Get(ctx context.Context) (*model.DisplayConfig, error)
	Update(ctx context.Context, actor model.Actor, p *model.DisplayConfigPatch) (*model.DisplayConfig, error)
	Video(ctx context.Context, actor model.Actor, cmd model.VideoCommand) (*model.DisplayConfig, error)
	SetPlayback(ctx context.Context, actor model.Actor, req *model.PlaybackRequest) (*model.DisplayConfig, error)
	CreateScreen(ctx context.Context, req *model.CreateScreenRequest) (*model.Screen, error)
	ListScreens(ctx context.Context) ([]*model.Screen, error)
	DeleteScreen(ctx context.Context, id uuid.UUID) error
	AddDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
}

// ValidationError carries per-field details for a rejected patch.
type ValidationError struct {
	Fields []validator.FieldError
}

func (e *ValidationError) Error() string {
	return "invalid display config"
}

type Service struct {
	config   repository.DisplayConfigRepository
	screens  repository.ScreenRepository
	doctors  repository.DoctorRepository
	hasher   security.SecretHasher
	validate validator.Validator
	log      *logger.Logger
}

func NewService(
	config repository.DisplayConfigRepository,
	screens repository.ScreenRepository,
	doctors repository.DoctorRepository,
	hasher security.SecretHasher,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		config:   config,
		screens:  screens,
		doctors:  doctors,
		hasher:   hasher,
		validate: validator.New(),
		log:      log.With("service", "display"),
	}
}

func (s *Service) Get(ctx context.Context) (*model.DisplayConfig, error) {
	return s.config.Get(ctx)
}

// Update merges a partial patch. Only present fields are written. The video
// nonce is owned by Video and cannot be set here.
func (s *Service) Update(ctx context.Context, actor model.Actor, p *model.DisplayConfigPatch) (*model.DisplayConfig, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Forbidden("only the admin can change the display configuration")
	}
	if p == nil || patch.IsEmpty(p) {
		return nil, errors.BadRequest("empty display config patch", nil)
	}
	if p.VideoTrigger != nil || p.VideoCommand != nil {
		return nil, errors.BadRequest("video commands are sent through the video endpoint", nil)
	}
	if err := s.validate.Validate(p); err != nil {
		return nil, errors.BadRequest("invalid display config", &ValidationError{Fields: validator.Describe(err)})
	}
	return s.write(ctx, p)
}

// Video fires a one-shot playlist command. Every call carries a fresh
// trigger, so two identical commands in a row both take effect.
func (s *Service) Video(ctx context.Context, actor model.Actor, cmd model.VideoCommand) (*model.DisplayConfig, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Forbidden("only the admin can control the video")
	}
	if !cmd.Valid() {
		return nil, errors.BadRequest("unknown video command", nil)
	}
	trigger := uuid.NewString()
	return s.write(ctx, &model.DisplayConfigPatch{VideoCommand: &cmd, VideoTrigger: &trigger})
}

func (s *Service) SetPlayback(ctx context.Context, actor model.Actor, req *model.PlaybackRequest) (*model.DisplayConfig, error) {
	if actor.Role != model.RoleAdmin {
		return nil, errors.Forbidden("only the admin can control the video")
	}
	p := &model.DisplayConfigPatch{VideoStatus: req.Status, VideoMuted: req.Muted, VideoVolume: req.Volume}
	if patch.IsEmpty(p) {
		return nil, errors.BadRequest("nothing to change", nil)
	}
	if err := s.validate.Validate(p); err != nil {
		return nil, errors.BadRequest("invalid playback settings", &ValidationError{Fields: validator.Describe(err)})
	}
	return s.write(ctx, p)
}

func (s *Service) write(ctx context.Context, p *model.DisplayConfigPatch) (*model.DisplayConfig, error) {
	cfg, err := s.config.Update(ctx, p)
	if err != nil {
		s.log.Error(err, "failed to update display config", "fields", patch.Present(p))
		return nil, asAppError("failed to update display config", err)
	}
	s.log.Info("display config updated", "fields", patch.Present(p))
	return cfg, nil
}

func (s *Service) CreateScreen(ctx context.Context, req *model.CreateScreenRequest) (*model.Screen, error) {
	if req.SequenceNumber < 1 || req.Name == "" {
		return nil, errors.BadRequest("sequence number and name are required", nil)
	}
	hash, err := s.hasher.Hash(req.Secret)
	if err != nil {
		return nil, errors.BadRequest("invalid screen secret", err)
	}
	screen := &model.Screen{SequenceNumber: req.SequenceNumber, Name: req.Name, Secret: hash}
	if err := s.screens.Create(ctx, screen); err != nil {
		return nil, asAppError("failed to create screen", err)
	}
	s.log.Info("screen created", "screen_id", screen.ID.String(), "name", screen.Name)
	return screen, nil
}

func (s *Service) ListScreens(ctx context.Context) ([]*model.Screen, error) {
	return s.screens.List(ctx)
}

func (s *Service) DeleteScreen(ctx context.Context, id uuid.UUID) error {
	if err := s.screens.Delete(ctx, id); err != nil {
		return asAppError("failed to delete screen", err)
	}
	return nil
}

func (s *Service) AddDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if req.SequenceNumber < 1 || req.Name == "" {
		return nil, errors.BadRequest("sequence number and name are required", nil)
	}
	doctor := &model.Doctor{
		SequenceNumber: req.SequenceNumber,
		Name:           req.Name,
		Specialty:      req.Specialty,
		ImageRef:       req.ImageRef,
		WorkingDays:    pq.StringArray(req.WorkingDays),
		Phone:          req.Phone,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, asAppError("failed to add doctor", err)
	}
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	return s.doctors.List(ctx)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return asAppError("failed to delete doctor", err)
	}
	return nil
}

func asAppError(message string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.Unavailable(message, err)
}

func (e *ValidationError) FieldErrors() []validator.FieldError {
	return e.Fields
}
