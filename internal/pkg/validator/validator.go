package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Payment method validation
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		method := fl.Field().String()
		validMethods := []string{"card", "instant", "bank_debit", "ach"}
		for _, m := range validMethods {
			if method == m {
				return true
			}
		}
		return false
	})

	// Dispute resolution validation
	validate.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		resolution := fl.Field().String()
		validResolutions := []string{"payer", "payee", "split"}
		for _, r := range validResolutions {
			if resolution == r {
				return true
			}
		}
		return false
	})

	// Usage feature validation
	validate.RegisterValidation("usage_feature", func(fl validator.FieldLevel) bool {
		feature := fl.Field().String()
		validFeatures := []string{"active_jobs", "invoices_month", "leads_month", "customers"}
		for _, f := range validFeatures {
			if feature == f {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "payment_method":
			errors[field] = "Invalid payment method. Must be: card, instant, bank_debit, or ach"
		case "resolution":
			errors[field] = "Invalid resolution. Must be: payer, payee, or split"
		case "usage_feature":
			errors[field] = "Invalid feature. Must be: active_jobs, invoices_month, leads_month, or customers"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
