package validator

import (
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type validator struct {
	v *playground.Validate
}

// FieldError is one failed rule, keyed by the json field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func New() Validator {
	v := playground.New()
	if err := Register(v, "validate"); err != nil {
		panic(err)
	}
	return &validator{v: v}
}

// Register installs the custom tags and json field naming on v. tagName is
// only used to report which struct tag the engine reads.
func Register(v *playground.Validate, tagName string) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("layout_split", layoutSplit); err != nil {
		return fmt.Errorf("register layout_split for %s: %w", tagName, err)
	}
	if err := v.RegisterValidation("notification_type", notificationType); err != nil {
		return fmt.Errorf("register notification_type for %s: %w", tagName, err)
	}
	return nil
}

func (v *validator) Validate(obj interface{}) error {
	return v.v.Struct(obj)
}

// Describe flattens validation errors for a response body. Other errors
// yield nil.
func Describe(err error) []FieldError {
	errs, ok := err.(playground.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out
}

func message(e playground.FieldError) string {
	switch e.Tag() {
	case "required":
		return "Field is required"
	case "min", "gt", "gte":
		return fmt.Sprintf("Value must be at least %s", e.Param())
	case "max", "lt", "lte":
		return fmt.Sprintf("Value must be at most %s", e.Param())
	case "hexcolor":
		return "Invalid hex color"
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s", e.Param())
	case "layout_split":
		return fmt.Sprintf("Value must be one of: %s", strings.Join(model.LayoutSplits, " "))
	case "notification_type":
		return "Unknown notification type"
	}
	return e.Error()
}

func layoutSplit(fl playground.FieldLevel) bool {
	s := fl.Field().String()
	for _, allowed := range model.LayoutSplits {
		if s == allowed {
			return true
		}
	}
	return false
}

func notificationType(fl playground.FieldLevel) bool {
	return model.NotificationType(fl.Field().String()).Valid()
}
