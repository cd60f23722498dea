package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/common"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	must("hasupper", runeClass(unicode.IsUpper))
	must("haslower", runeClass(unicode.IsLower))
	must("hasdigit", runeClass(unicode.IsDigit))
	return v
}

func runeClass(is func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), is) >= 0
	}
}

// messages maps a failed field/tag pair to what the user sees.
var messages = map[string]string{
	"FullName.required": "Full name is required",
	"FullName.min":      "Full name must be at least 2 characters",
	"Username.required": "Username is required",
	"Username.min":      "Username must be at least 3 characters",
	"Username.username": "Username can only contain lowercase letters, numbers, and underscores",
	"Email.required":    "Email is required",
	"Email.email":       "Invalid email format",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 8 characters",
	"Password.hasupper": "Password must contain at least one uppercase letter",
	"Password.haslower": "Password must contain at least one lowercase letter",
	"Password.hasdigit": "Password must contain at least one number",
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

// fieldError turns the first relevant validator failure into a
// validation error. Missing fields are reported before malformed ones.
func fieldError(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	first := verrs[0]
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			first = fe
			break
		}
	}
	name := first.StructField()
	if name == "" {
		name = field
	}
	if msg, ok := messages[name+"."+first.Tag()]; ok {
		return invalid(msg)
	}
	return invalid(first.Error())
}

// NormalizeRegistration trims every field and lower-cases username and
// email the way the backend stores them.
func NormalizeRegistration(r models.RegisterRequest) models.RegisterRequest {
	return models.RegisterRequest{
		FullName: strings.TrimSpace(r.FullName),
		Username: strings.ToLower(strings.TrimSpace(r.Username)),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Password: r.Password,
	}
}

// ValidateRegistration applies the backend rules to an already normalised
// request so bad input fails before any network call.
func ValidateRegistration(r models.RegisterRequest) error {
	return fieldError(validate.Struct(r), "")
}

func ValidateEmail(email string) error {
	return fieldError(validate.Var(email, "required,email"), "Email")
}

func ValidatePassword(p string) error {
	return fieldError(validate.Var(p, "required,min=8,hasupper,haslower,hasdigit"), "Password")
}

func ValidateFullName(name string) error {
	return fieldError(validate.Var(strings.TrimSpace(name), "required,min=2"), "FullName")
}

func validateFileType(ft models.FileType) error {
	if !ft.Valid() {
		return fmt.Errorf("%w: %q, want excel or pdf", common.ErrInvalidFileType, ft)
	}
	return nil
}
