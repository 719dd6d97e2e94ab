package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/auth"
	"github.com/jwalitptl/clinic-queue/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(nil), Logger(nil))
	r.GET("/", append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })...)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	jwt := auth.NewJWTService(auth.Config{Secret: "test-secret"})
	m := NewAuthMiddleware(jwt)
	clinicID := uuid.New()
	token, err := jwt.GenerateAccessToken(model.RoleClinic, clinicID, "Dental")
	require.NoError(t, err)

	var seen model.Actor
	r := newEngine(m.Authenticate(), m.RequireRole(model.RoleClinic, model.RoleAdmin), func(c *gin.Context) {
		seen = Actor(c)
	})

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"malformed", func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"query", func(r *http.Request) { r.URL.RawQuery = "access_token=" + token }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, clinicID, seen.ClinicID)
	assert.Equal(t, model.RoleClinic, seen.Role)
}

func TestRequireRole_Forbidden(t *testing.T) {
	jwt := auth.NewJWTService(auth.Config{Secret: "test-secret"})
	m := NewAuthMiddleware(jwt)
	token, err := jwt.GenerateAccessToken(model.RoleScreen, uuid.New(), "Lobby")
	require.NoError(t, err)

	r := newEngine(m.Authenticate(), m.RequireRole(model.RoleAdmin))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	r := newEngine(rl.RateLimit())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, http.StatusOK, serve(r, first).Code)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.RemoteAddr = "10.0.0.1:1235"
	assert.Equal(t, http.StatusTooManyRequests, serve(r, again).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(r, other).Code)
}

func TestRecovery(t *testing.T) {
	r := newEngine(func(c *gin.Context) { panic("boom") })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowOrigins: []string{"http://lobby.local"}, AllowMethods: []string{"GET"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://lobby.local")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://lobby.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://elsewhere")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRegisterValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req model.SendNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"shout"}`))
	bad.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(r, bad).Code)

	good := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"emergency"}`))
	good.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusOK, serve(r, good).Code)
}

func TestLogger_RedactsAccessToken(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: &buf, JSON: true})
	r := gin.New()
	r.Use(Logger(log))
	r.GET("/feed", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/feed?access_token=secret-jwt&x=1", nil))

	assert.NotContains(t, buf.String(), "secret-jwt")
	assert.Contains(t, buf.String(), "REDACTED")
}
