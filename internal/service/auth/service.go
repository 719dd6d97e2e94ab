package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/repository"
	"github.com/jwalitptl/clinic-queue/pkg/auth"
	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

type Servicer interface {
	ConsoleLogin(ctx context.Context, req *model.ConsoleLoginRequest) (*model.TokenResponse, error)
	ScreenLogin(ctx context.Context, req *model.ScreenLoginRequest) (*model.TokenResponse, error)
	AdminLogin(ctx context.Context, req *model.AdminLoginRequest) (*model.TokenResponse, error)
}

type Service struct {
	clinics   repository.ClinicRepository
	screens   repository.ScreenRepository
	hasher    security.SecretHasher
	jwt       auth.JWTService
	adminHash string
	attempts  *cache.Cache
	log       *logger.Logger
}

// NewService hashes adminSecret once; the plain value is not kept.
func NewService(
	clinics repository.ClinicRepository,
	screens repository.ScreenRepository,
	hasher security.SecretHasher,
	jwt auth.JWTService,
	adminSecret string,
	log *logger.Logger,
) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}
	hash, err := hasher.Hash(adminSecret)
	if err != nil {
		return nil, err
	}
	return &Service{
		clinics:   clinics,
		screens:   screens,
		hasher:    hasher,
		jwt:       jwt,
		adminHash: hash,
		attempts:  cache.New(lockoutDuration, 2*lockoutDuration),
		log:       log.With("service", "auth"),
	}, nil
}

func (s *Service) ConsoleLogin(ctx context.Context, req *model.ConsoleLoginRequest) (*model.TokenResponse, error) {
	key := "clinic:" + req.ClinicID.String()
	if err := s.checkLockout(key); err != nil {
		return nil, err
	}
	clinic, err := s.clinics.Get(ctx, req.ClinicID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, s.fail(key)
		}
		return nil, err
	}
	if err := s.hasher.Compare(clinic.OperatorSecret, req.Secret); err != nil {
		return nil, s.fail(key)
	}
	return s.issue(key, model.RoleClinic, clinic.ID, clinic.Name)
}

func (s *Service) ScreenLogin(ctx context.Context, req *model.ScreenLoginRequest) (*model.TokenResponse, error) {
	key := "screen:" + req.ScreenID.String()
	if err := s.checkLockout(key); err != nil {
		return nil, err
	}
	screen, err := s.screens.Get(ctx, req.ScreenID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, s.fail(key)
		}
		return nil, err
	}
	if err := s.hasher.Compare(screen.Secret, req.Secret); err != nil {
		return nil, s.fail(key)
	}
	return s.issue(key, model.RoleScreen, screen.ID, screen.Name)
}

func (s *Service) AdminLogin(ctx context.Context, req *model.AdminLoginRequest) (*model.TokenResponse, error) {
	key := "admin"
	if err := s.checkLockout(key); err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(s.adminHash, req.Secret); err != nil {
		return nil, s.fail(key)
	}
	return s.issue(key, model.RoleAdmin, uuid.Nil, model.AdminLabel)
}

func (s *Service) issue(key string, role model.Role, subject uuid.UUID, label string) (*model.TokenResponse, error) {
	s.attempts.Delete(key)
	token, err := s.jwt.GenerateAccessToken(role, subject, label)
	if err != nil {
		return nil, errors.Internal(err)
	}
	s.log.Info("login succeeded", "role", string(role), "label", label)
	return &model.TokenResponse{AccessToken: token, Role: role}, nil
}

func (s *Service) checkLockout(key string) error {
	if n, ok := s.attempts.Get(key); ok && n.(int) >= maxLoginAttempts {
		return &errors.AppError{Code: errors.ErrUnauthorized, Message: "too many failed attempts, try again later"}
	}
	return nil
}

func (s *Service) fail(key string) error {
	if err := s.attempts.Add(key, 1, cache.DefaultExpiration); err != nil {
		if _, err := s.attempts.IncrementInt(key, 1); err != nil {
			s.log.Error(err, "failed to count login attempt", "subject", key)
		}
	}
	s.log.Warn("login failed", "subject", key)
	return errors.Unauthorized(model.ErrInvalidCredentials)
}
