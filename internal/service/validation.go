package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/navikt/roomboard/internal/models"
)

// FieldError is one rejected field of a request
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists the rejected fields of a request.
// The message only names fields and rules, so it is safe to show to users.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// newValidator names fields by their JSON key and validates Timestamp fields
// as the time they hold, or as missing when invalid
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if ts, ok := field.Interface().(models.Timestamp); ok && ts.Valid {
			return ts.Time
		}
		return nil
	}, models.Timestamp{})
	return v
}

// translateValidationErrors turns validator output into user-facing field messages
func translateValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return ValidationErrors{{Message: "request is malformed"}}
	}

	translated := make(ValidationErrors, 0, len(errs))
	for _, fe := range errs {
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			message = fmt.Sprintf("%s is invalid", fe.Field())
		}
		translated = append(translated, FieldError{Field: fe.Field(), Message: message})
	}
	return translated
}
