package validator

import (
	"errors"
	"fmt"
	"strings"

	"rentkar/pkg/logger"
	"rentkar/pkg/model"

	"github.com/go-playground/validator/v10"
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
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !booking.EndDate.After(booking.StartDate) {
		return ValidationErrors{
			ValidationError{
				Field:   "EndDate",
				Message: "endDate must be after startDate",
			},
		}
	}

	if booking.DeliveryTime.EndHour < booking.DeliveryTime.StartHour {
		return ValidationErrors{
			ValidationError{
				Field:   "DeliveryTime",
				Message: "delivery window endHour cannot precede startHour",
			},
		}
	}

	seen := make(map[string]bool, len(booking.Documents))
	for _, doc := range booking.Documents {
		if seen[doc.DocType] {
			return ValidationErrors{
				ValidationError{
					Field:   "Documents",
					Message: fmt.Sprintf("duplicate document type %s", doc.DocType),
				},
			}
		}
		seen[doc.DocType] = true
	}

	return nil
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.StartDate != nil && update.EndDate != nil {
		if !update.EndDate.After(*update.StartDate) {
			return ValidationErrors{
				ValidationError{
					Field:   "EndDate",
					Message: "endDate must be after startDate",
				},
			}
		}
	}

	return nil
}

// ValidateReviews checks a review batch: every decision must carry a known
// document type and a terminal status, and no type may appear twice.
func (v *BookingValidator) ValidateReviews(reviews []model.DocumentReview) error {
	if len(reviews) == 0 {
		return ValidationErrors{
			ValidationError{
				Field:   "Reviews",
				Message: "at least one document review is required",
			},
		}
	}

	seen := make(map[string]bool, len(reviews))
	for i, review := range reviews {
		if err := v.validate.Struct(review); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				return v.translateValidationErrors(validationErrs)
			}
			return err
		}
		if seen[review.DocType] {
			return ValidationErrors{
				ValidationError{
					Field:   fmt.Sprintf("Reviews[%d]", i),
					Message: fmt.Sprintf("duplicate review for document type %s", review.DocType),
				},
			}
		}
		seen[review.DocType] = true
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
