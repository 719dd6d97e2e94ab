package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-queue/pkg/errors"
	"github.com/jwalitptl/clinic-queue/pkg/validator"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Fields  []validator.FieldError `json:"fields,omitempty"`
}

// fieldErrors is implemented by errors that carry per-field details.
type fieldErrors interface {
	FieldErrors() []validator.FieldError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps err onto a status code and an error body. Errors
// that are not AppErrors are reported as internal without their text.
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		statusCode = appErr.StatusCode()
		message = appErr.Message
	}

	body := &Error{Code: statusCode, Message: message}
	var fe fieldErrors
	if stderrors.As(err, &fe) {
		body.Fields = fe.FieldErrors()
	} else if fields := validator.Describe(unwrapAll(err)); len(fields) > 0 {
		body.Fields = fields
	}

	if statusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error:   body,
	})
}

// RespondWithBindError reports a request body that failed to decode or
// validate.
func RespondWithBindError(c *gin.Context, err error) {
	RespondWithError(c, errors.BadRequest("invalid request body", err))
}

func unwrapAll(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
