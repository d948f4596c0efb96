// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/supplymatch-backend/internal/models"
)

// Keep in sync with the CHECK constraints in the initial migration.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("phone", validatePhone)
	validate.RegisterValidation("listing_status", validateListingStatus)
	validate.RegisterValidation("request_status", validateRequestStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

func IsPhone(value string) bool {
	return phonePattern.MatchString(value)
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsPhone(fl.Field().String())
}

func validateListingStatus(fl validator.FieldLevel) bool {
	return models.ListingStatus(fl.Field().String()).Valid()
}

func validateRequestStatus(fl validator.FieldLevel) bool {
	return models.RequestStatus(fl.Field().String()).Valid()
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

// DescribeValidationErrors flattens validation errors into one line.
func DescribeValidationErrors(err error) string {
	errs := GetValidationErrors(err)
	if len(errs) == 0 {
		return err.Error()
	}

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, "; ")
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "phone":
		return "Phone must contain 7-15 digits with an optional leading +"
	case "url":
		return e.Field() + " must be a valid URL"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "listing_status", "request_status", "oneof":
		return e.Field() + " has an unknown value"
	default:
		return e.Field() + " is invalid"
	}
}
