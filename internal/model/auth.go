package model

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleClinic Role = "clinic"
	RoleScreen Role = "screen"
	RoleAdmin  Role = "admin"
)

type ConsoleLoginRequest struct {
	ClinicID uuid.UUID `json:"clinic_id" binding:"required"`
	Secret   string    `json:"secret" binding:"required"`
}

type ScreenLoginRequest struct {
	ScreenID uuid.UUID `json:"screen_id" binding:"required"`
	Secret   string    `json:"secret" binding:"required"`
}

type AdminLoginRequest struct {
	Secret string `json:"secret" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
}

var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenClaims identifies a connected console or screen. SubjectID is the
// clinic or screen id and is zero for the admin.
type TokenClaims struct {
	jwt.RegisteredClaims
	Role      Role      `json:"role"`
	SubjectID uuid.UUID `json:"subject_id"`
	Label     string    `json:"label"`
}

// Actor is the authenticated caller of a write operation.
type Actor struct {
	Role     Role
	ClinicID uuid.UUID
	Label    string
}

func AdminActor() Actor {
	return Actor{Role: RoleAdmin, Label: AdminLabel}
}

// CanWriteClinic reports whether the actor may change the given clinic.
// Consoles own their clinic; the admin may write any.
func (a Actor) CanWriteClinic(id uuid.UUID) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleClinic && a.ClinicID == id
}

// ActorFromClaims maps verified token claims onto an actor.
func ActorFromClaims(c *TokenClaims) Actor {
	a := Actor{Role: c.Role, Label: c.Label}
	if c.Role == RoleClinic {
		a.ClinicID = c.SubjectID
	}
	return a
}
