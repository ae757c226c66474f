// Package validation wraps go-playground/validator so request inputs can
// be checked with struct tags and reported as field -> messages maps keyed
// by the JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Messages overrides the default text for a "field.tag" pair, for example
// "email.required".
type Messages map[string]string

var defaults = map[string]string{
	"required": "The %s field is required.",
	"email":    "The %s field must be a valid email address.",
	"min":      "The %s field must be at least %s characters.",
	"max":      "The %s field must not be greater than %s characters.",
	"eqfield":  "The %s field must match %s.",
	"nefield":  "The %s field must be different from %s.",
	"uuid":     "The %s field must be a valid UUID.",
	"oneof":    "The %s field must be one of %s.",
}

// Struct validates s and returns nil when it is valid. Each failing field
// maps to its messages in tag order.
func Struct(s any, msgs Messages) map[string][]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"_": {err.Error()}}
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		out[field] = append(out[field], message(fe, msgs))
	}
	return out
}

func message(fe validator.FieldError, msgs Messages) string {
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	tmpl, ok := defaults[fe.Tag()]
	if !ok {
		return fmt.Sprintf("The %s field is invalid.", humanize(fe.Field()))
	}
	if strings.Count(tmpl, "%s") == 2 {
		param := fe.Param()
		if fe.Tag() == "eqfield" || fe.Tag() == "nefield" {
			param = humanize(toSnake(param))
		}
		return fmt.Sprintf(tmpl, humanize(fe.Field()), param)
	}
	return fmt.Sprintf(tmpl, humanize(fe.Field()))
}

func humanize(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
