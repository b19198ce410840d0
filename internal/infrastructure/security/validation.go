package security

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/healthharmony/assistant/internal/domain/profile"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
)

// MaxItemLength bounds a single profile entry or item name
const MaxItemLength = 200

// Validator checks request payloads and turns failures into API errors
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the request tags registered
func NewValidator() *Validator {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("category", validateCategory)
	_ = validate.RegisterValidation("profile_item", validateProfileItem)
	_ = validate.RegisterValidation("image_data_uri", validateImageDataURI)
	_ = validate.RegisterValidation("strong_password", validateStrongPassword)

	return &Validator{validate: validate}
}

// Struct validates s and returns a VALIDATION_FAILED AppError listing every
// failing field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}

	details := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apperrors.ValidationError{
			Field:   fe.Field(),
			Value:   redact(fe),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return apperrors.NewValidationErrors(details)
}

func redact(fe validator.FieldError) interface{} {
	switch fe.Tag() {
	case "strong_password", "image_data_uri":
		return nil
	}
	if fe.Field() == "password" {
		return nil
	}
	return fe.Value()
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s accepts at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "category":
		return fmt.Sprintf("%s must be one of allergies, medications, conditions", field)
	case "profile_item":
		return fmt.Sprintf("%s must be 1-%d printable characters", field, MaxItemLength)
	case "image_data_uri":
		return fmt.Sprintf("%s must be base64 image data URIs", field)
	case "strong_password":
		return "Password must be at least 8 characters with 3 different character types"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validateCategory(fl validator.FieldLevel) bool {
	return profile.Category(fl.Field().String()).IsValid()
}

// validateProfileItem accepts non-blank printable text without markup
func validateProfileItem(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" || utf8.RuneCountInString(value) > MaxItemLength {
		return false
	}
	for _, r := range value {
		if unicode.IsControl(r) || r == '<' || r == '>' {
			return false
		}
	}
	return true
}

func validateImageDataURI(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return strings.HasPrefix(value, "data:image/") && strings.Contains(value, ";base64,")
}

// validateStrongPassword requires 8+ characters drawn from 3 of the 4
// character classes.
func validateStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if ok {
			classes++
		}
	}
	return classes >= 3
}
