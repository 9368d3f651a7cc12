package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"floodloop/internal/types"
)

// Validator wraps go-playground/validator for request DTO validation.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct runs tag-based validation on a decoded request DTO and
// translates failures into a 400 AppError with per-field details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fields := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidPayload,
		"request validation failed",
		err,
		map[string]any{"fields": fields},
	)
}
