package handler

import (
	"github.com/chainguard/api/internal/pkg/apperror"
	"github.com/chainguard/api/internal/pkg/validation"
)

// bindError turns a ShouldBind failure into a 400 problem with field errors.
func bindError(err error) *apperror.AppError {
	return apperror.ValidationError("Request validation failed", "Correct the highlighted fields and try again").
		WithErrors(validation.FieldErrors(err))
}
