package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Issue is a single field-level validation problem.
type Issue struct {
	Path    string
	Message string
}

// ValidationError reports every problem found in a tool input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
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

// decodeInput unmarshals raw into dst and validates it. A missing or null
// input is decoded as an empty object so that required fields are
// reported individually.
func decodeInput(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' {
		return &ValidationError{Issues: []Issue{{Path: "(root)", Message: "Expected object"}}}
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &ValidationError{Issues: []Issue{{
				Path:    typeErr.Field,
				Message: "Expected " + expectedType(typeErr.Type),
			}}}
		}
		return &ValidationError{Issues: []Issue{{Path: "(root)", Message: "Invalid JSON"}}}
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating input: %w", err)
		}
		issues := make([]Issue, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, Issue{Path: fieldPath(fe), Message: fieldMessage(fe)})
		}
		return &ValidationError{Issues: issues}
	}
	return nil
}

func expectedType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Slice:
		return "array"
	default:
		return t.Kind().String()
	}
}

// fieldPath renders "sendEmailInput.to[0]" as "to.0".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	kind := fe.Kind()

	switch fe.Tag() {
	case "required":
		if kind == reflect.Slice {
			return "At least one " + singular(name) + " is required"
		}
		return name + " is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		switch kind {
		case reflect.Slice:
			return "At least one " + singular(name) + " is required"
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		default:
			return fmt.Sprintf("%s must be >= %s", name, fe.Param())
		}
	case "max":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("%s must be <= %s characters", name, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("%s must contain at most %s items", name, fe.Param())
		default:
			return fmt.Sprintf("%s must be <= %s", name, fe.Param())
		}
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func singular(field string) string {
	if field == "to" {
		return "recipient"
	}
	return strings.TrimSuffix(field, "s")
}
