// Package validate checks and cleans user-submitted form data.
package validate

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mcnijman/go-emailaddress"
	"github.com/microcosm-cc/bluemonday"
)

// Errors maps a JSON field name to a human readable problem
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator wraps a configured go-playground validator and an HTML policy
type Validator struct {
	v      *validator.Validate
	policy *bluemonday.Policy
}

// New creates a Validator with the custom rules registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})

	return &Validator{
		v:      v,
		policy: bluemonday.StrictPolicy(),
	}
}

// IsEmail reports whether s is a syntactically valid address
func IsEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := emailaddress.Parse(s)
	return err == nil
}

// Struct validates s and returns Errors keyed by JSON field name
func (x *Validator) Struct(s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

// maxSanitizePasses bounds how many entity layers Sanitize peels off
const maxSanitizePasses = 8

// Sanitize strips all markup and surrounding whitespace. The result is plain
// text; escaping happens again wherever it is rendered.
//
// Unescaping can turn entities such as &lt;img&gt; into markup, so the text
// is sanitized again until unescaping no longer changes it. Input still
// changing after maxSanitizePasses is returned escaped.
func (x *Validator) Sanitize(s string) string {
	cur := s
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(x.policy.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
	return strings.TrimSpace(x.policy.Sanitize(cur))
}

// SanitizeStruct sanitizes every exported string field of the struct pointed to by ptr
func (x *Validator) SanitizeStruct(ptr any) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(x.Sanitize(f.String()))
		}
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "mailbox", "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
