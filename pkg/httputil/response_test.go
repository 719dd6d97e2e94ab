package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/validator"
)

type withFields struct{}

func (withFields) Error() string { return "bad fields" }

func (withFields) FieldErrors() []validator.FieldError {
	return []validator.FieldError{{Field: "columns", Message: "Value must be at least 1"}}
}

func respond(err error) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithError(c, err)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", errors.NotFound("clinic", nil), http.StatusNotFound, "clinic not found"},
		{"forbidden", errors.Forbidden("no"), http.StatusForbidden, "no"},
		{"unavailable", errors.Unavailable("store down", fmt.Errorf("dial")), http.StatusServiceUnavailable, "store down"},
		{"wrapped", fmt.Errorf("call: %w", errors.Conflict("stale", nil)), http.StatusConflict, "stale"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.status, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestRespondWithError_Fields(t *testing.T) {
	w, body := respond(errors.BadRequest("invalid display config", withFields{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, body.Error)
	require.Len(t, body.Error.Fields, 1)
	assert.Equal(t, "columns", body.Error.Fields[0].Field)
}
