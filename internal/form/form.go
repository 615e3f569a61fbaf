// Package form holds one typed request struct per HTML form and turns a bound
// struct into either a parsed value or a field→message map.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/lot-auction/internal/model"
)

// Errors maps a form field name (its `form` tag) to a user-facing message.
type Errors map[string]string

// Add records msg for field unless the field already has a message.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Result is the outcome of parsing a form: Value is meaningful only when
// Errors is empty.
type Result[T any] struct {
	Value  T
	Errors Errors
}

func (r Result[T]) OK() bool { return len(r.Errors) == 0 }

func ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func invalid[T any](errs Errors) Result[T] { return Result[T]{Errors: errs} }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their form name so templates can look them up.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	// bcrypt only looks at the first 72 bytes, whatever the alphabet.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	return v
}

// check validates s and converts validator failures into Errors.
func check(s any) Errors {
	errs := Errors{}
	err := validate.Struct(s)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("_form", "Invalid input.")
		return errs
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "eqfield":
		return "Field must be equal to password."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("Must be at most %s bytes.", fe.Param())
	case "category":
		return "Not a valid choice."
	default:
		return "Invalid value."
	}
}
