package http

import (
	"errors"

	"bitguardian/internal/domain/loan"

	"github.com/go-playground/validator/v10"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// BTC amount: positive decimal string, at most 8 fractional digits
	_ = v.RegisterValidation("btcamount", func(fl validator.FieldLevel) bool {
		_, err := loan.ParseAmount(fl.Field().String())
		return err == nil
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "btcamount":
			out = append(out, FieldError{Field: field, Message: "must be a positive amount with at most 8 decimal places"})
		case "eth_addr":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 20-byte hex address"})
		case "email":
			out = append(out, FieldError{Field: field, Message: "must be a valid email address"})
		case "max":
			out = append(out, FieldError{Field: field, Message: "must be at most " + e.Param() + " characters"})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
