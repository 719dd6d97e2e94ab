package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s3cret"})
	id := uuid.New()

	token, err := svc.GenerateAccessToken(model.RoleClinic, id, "Dental")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleClinic, claims.Role)
	assert.Equal(t, id, claims.SubjectID)
	assert.Equal(t, "Dental", claims.Label)

	actor := model.ActorFromClaims(claims)
	assert.True(t, actor.CanWriteClinic(id))
	assert.False(t, actor.CanWriteClinic(uuid.New()))
}

func TestJWT_Rejections(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s3cret", TTL: time.Minute})
	token, err := svc.GenerateAccessToken(model.RoleAdmin, uuid.Nil, model.AdminLabel)
	require.NoError(t, err)

	other := NewJWTService(Config{Secret: "different"})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	late := svc.(*jwtService)
	late.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = late.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
