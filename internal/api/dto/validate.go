package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

var validate = validator.New()

// Validate checks a request struct against its validate tags and converts
// failures into field-level validation errors.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	details := map[string]any{}
	for _, fieldErr := range invalid {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return apperrors.NewValidationError("invalid payload", details)
}
