package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ── Errors ───────────────────────────────────────────────────────────────────

// ValidationErrors holds failed rules per field, like Laravel's MessageBag.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type ValidationErrors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *ValidationErrors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *ValidationErrors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *ValidationErrors) First(field string) string {
	if msgs := e.Bag[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Bag))
}

// ── Validator ────────────────────────────────────────────────────────────────

// Validator checks `validate` struct tags. Field names in errors follow the
// json tag, so they match the request body.
//
//	type StoreUser struct {
//	    Name  string `json:"name"  validate:"required,min=2,max=100"`
//	    Email string `json:"email" validate:"required,email"`
//	}
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s. Rule failures come back as *ValidationErrors; any
// other error (e.g. s is not a struct) is returned as is.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		out.add(fe.Field(), message(fe))
	}
	return out
}

// Bind decodes the JSON body of req into dst and validates it.
//
//	// Laravel: $request->validate([...])
//	var body StoreUser
//	if err := v.Bind(req, &body); err != nil { ... }
func (v *Validator) Bind(req *Request, dst any) error {
	if err := req.Bind(dst); err != nil {
		return err
	}
	return v.Struct(dst)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "min":
		return fmt.Sprintf("The %s must be at least %s.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("The %s must be greater than or equal to %s.", field, fe.Param())
	case "lte":
		return fmt.Sprintf("The %s must be less than or equal to %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", field, fe.Param())
	case "numeric", "number":
		return fmt.Sprintf("The %s must be a number.", field)
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}
