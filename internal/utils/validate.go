package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/models"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("province", func(fl validator.FieldLevel) bool {
		return models.Province(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("business_type", func(fl validator.FieldLevel) bool {
		return models.BusinessType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("customer_type", func(fl validator.FieldLevel) bool {
		return models.CustomerType(fl.Field().String()).Valid()
	})
	return v
}

// ValidateStruct runs struct tag validation and converts failures into a
// Validation error keyed by JSON field name.
func ValidateStruct(body any) error {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperr.New(apperr.KindValidation, "Validation failed").With("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "phone":
		return "Phone number must be entered in the format: '+999999999'. Up to 15 digits allowed."
	case "province":
		return "Select a valid South African province."
	case "business_type":
		return "Select a valid business type."
	case "customer_type":
		return "Customer type must be Retail or Trade."
	case "eqfield":
		return "Passwords do not match."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "len":
		return fmt.Sprintf("Ensure this field has exactly %s characters.", fe.Param())
	case "numeric":
		return "This field must contain digits only."
	}
	return "Invalid value."
}
