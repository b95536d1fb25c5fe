package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "palisade/pkg/domain-errors"
	s "palisade/pkg/string"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// FieldError is a single field-level validation failure. The full list is
// reported to clients so one round-trip surfaces every problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate validates a struct using the default validator and returns a
// domain error that wraps the raw validator error, so callers can recover
// the full field-level list with FieldErrors.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, Summary(err))
	}
	return nil
}

// FieldErrors converts a validator error into the complete list of
// field-level failures, in declaration order.
func FieldErrors(err error) []FieldError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []FieldError{{Field: "", Message: "invalid request body"}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fieldName(fe),
			Message: message(fe),
		})
	}
	return out
}

// Summary builds a short human-readable line from the first error plus up to
// three offending field paths. Debugging client integrations needs the full
// error list; the summary keeps the log line short.
func Summary(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	first := message(validationErrs[0])
	if len(validationErrs) == 1 {
		return first
	}

	limit := min(len(validationErrs), 3)
	fields := make([]string, 0, limit)
	for _, fe := range validationErrs[:limit] {
		fields = append(fields, fieldName(fe))
	}
	return fmt.Sprintf("%s (and %d more: %s)", first, len(validationErrs)-1, strings.Join(fields, ", "))
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return s.ToSnakeCase(name)
}

// message converts a single validator error into a human-readable message
func message(fe validator.FieldError) string {
	field := fieldName(fe)

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a valid url", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid uuid", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	default:
		if field == "" {
			return "invalid request body"
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}
