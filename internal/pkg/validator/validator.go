package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

// Gateway order ids allow letters, digits and - _ ~ . up to 50 chars.
var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9\-_~.]{1,50}$`)

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

	registerCustomValidations()
}

func registerCustomValidations() {
	validate.RegisterValidation("order_id", func(fl validator.FieldLevel) bool {
		return orderIDPattern.MatchString(fl.Field().String())
	})

	// order_prefix=TOPUP requires the value to start with the given prefix.
	validate.RegisterValidation("order_prefix", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), fl.Param())
	})

	validate.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		amount, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && amount.IsPositive()
	})

	validate.RegisterValidation("bank_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) < 2 || len(code) > 20 {
			return false
		}
		for _, r := range code {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
				return false
			}
		}
		return true
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "min":
			fields[field] = "Value is too short (min: " + fe.Param() + ")"
		case "max":
			fields[field] = "Value is too long (max: " + fe.Param() + ")"
		case "oneof":
			fields[field] = "Must be one of: " + fe.Param()
		case "order_id":
			fields[field] = "Invalid order id"
		case "order_prefix":
			fields[field] = "Order id must start with " + fe.Param()
		case "positive_amount":
			fields[field] = "Amount must be greater than zero"
		case "bank_code":
			fields[field] = "Invalid bank code"
		default:
			fields[field] = "Invalid value"
		}
	}

	return fields
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
