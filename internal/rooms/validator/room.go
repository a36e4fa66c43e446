package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"roomly/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type RoomValidator struct {
	validate *validator.Validate
}

func NewRoomValidator() *RoomValidator {
	return &RoomValidator{
		validate: validator.New(),
	}
}

func (v *RoomValidator) Validate(room *model.Room) error {
	if err := v.validate.Struct(room); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *RoomValidator) ValidateUpdate(updates *model.RoomUpdate) error {
	if err := v.validate.Struct(updates); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = "is required"
		case "min":
			message = fmt.Sprintf("must be at least %s", err.Param())
		case "max":
			message = fmt.Sprintf("must be at most %s", err.Param())
		case "uuid4":
			message = "must be a valid UUID"
		default:
			message = fmt.Sprintf("failed %s validation", err.Tag())
		}
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}
	return validationErrors
}
