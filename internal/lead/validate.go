package lead

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrors carries form-level and field-level validation failures.
type ValidationErrors struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

// NewValidationErrors returns an empty ValidationErrors.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		FormErrors:  []string{},
		FieldErrors: map[string][]string{},
	}
}

// AddField records a message for field.
func (v *ValidationErrors) AddField(field, msg string) {
	v.FieldErrors[field] = append(v.FieldErrors[field], msg)
}

// AddForm records a message that is not tied to a field.
func (v *ValidationErrors) AddForm(msg string) {
	v.FormErrors = append(v.FormErrors, msg)
}

// Empty reports whether no failures were recorded.
func (v *ValidationErrors) Empty() bool {
	return len(v.FormErrors) == 0 && len(v.FieldErrors) == 0
}

func (v *ValidationErrors) Error() string {
	parts := make([]string, 0, len(v.FormErrors)+len(v.FieldErrors))
	parts = append(parts, v.FormErrors...)
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(v.FieldErrors[f], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a request value against its validate tags. A nil return
// means the value is valid; otherwise the error is a *ValidationErrors.
func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	out := NewValidationErrors()
	for _, fe := range fieldErrs {
		out.AddField(fieldPath(fe.Namespace()), message(fe))
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return "must contain at least 1 item"
		}
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
