package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

var (
	ErrTokenExpired = stderrors.New("token expired")
	ErrTokenInvalid = stderrors.New("token invalid")
)

type JWTService interface {
	GenerateAccessToken(role model.Role, subjectID uuid.UUID, label string) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
}

type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

type jwtService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTService(cfg Config) JWTService {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "clinic-queue"
	}
	return &jwtService{secret: []byte(cfg.Secret), ttl: cfg.TTL, issuer: cfg.Issuer, now: time.Now}
}

func (s *jwtService) GenerateAccessToken(role model.Role, subjectID uuid.UUID, label string) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		Role:      role,
		SubjectID: subjectID,
		Label:     label,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtService) ValidateToken(tokenString string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	switch claims.Role {
	case model.RoleClinic, model.RoleScreen, model.RoleAdmin:
	default:
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
