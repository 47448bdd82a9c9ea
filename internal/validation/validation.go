// Package validation configures the request validator shared by handlers and
// services.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	walletPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlPattern    = regexp.MustCompile(`^https?://.+`)
)

// New returns a validator with the project-specific rules registered:
//
//	wallet   0x-prefixed 40 hex character address
//	email_basic  local@domain.tld without whitespace
//	web_url  http(s) URL, or empty to clear a field
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("wallet", func(fl validator.FieldLevel) bool {
		return IsWalletAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("email_basic", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("web_url", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || urlPattern.MatchString(s)
	})
	return v
}

// IsWalletAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsWalletAddress(s string) bool {
	return walletPattern.MatchString(s)
}

// IsEmail applies the basic email pattern used across the platform.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// FieldError is the client-facing shape of a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Details flattens validator errors into FieldErrors using the supplied
// messages (keyed by json namespace, e.g. "profile.bio"). Unknown fields get
// a generic message.
func Details(err error, messages map[string]string) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		msg, ok := messages[field]
		if !ok {
			msg = "Invalid value for " + field
		}
		out = append(out, FieldError{Field: field, Rule: fe.Tag(), Message: msg})
	}
	return out
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
