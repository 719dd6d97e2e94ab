package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-queue/pkg/validator"
)

// RegisterValidators installs the custom tags on gin's binding engine so
// `binding:"notification_type"` and friends work in request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return validator.Register(v, "binding")
}
