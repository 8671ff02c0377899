package validate

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("isbn", validateISBN)         //nolint:errcheck
	_ = v.RegisterValidation("bcryptmax", validateBcryptMax) //nolint:errcheck
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func (cv *CustomValidator) Var(field interface{}, tag string) error {
	return cv.validator.Var(field, tag)
}

var isbnRe = regexp.MustCompile(`^(\d{9}[\dX]|\d{13})$`)

var isbnSeparators = strings.NewReplacer("-", "", " ", "")

// NormalizeISBN drops hyphens and spaces and upper-cases the ISBN-10 check
// character, giving the form books are stored under.
func NormalizeISBN(s string) string {
	return isbnSeparators.Replace(strings.ToUpper(strings.TrimSpace(s)))
}

// IsISBN reports whether s looks like an ISBN-10 or ISBN-13. Hyphens and
// spaces are ignored, the check digit is not verified.
func IsISBN(s string) bool {
	return isbnRe.MatchString(NormalizeISBN(s))
}

func validateISBN(fl validator.FieldLevel) bool {
	return IsISBN(fl.Field().String())
}

// BcryptMaxBytes is the longest password bcrypt accepts, counted in bytes.
const BcryptMaxBytes = 72

func validateBcryptMax(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= BcryptMaxBytes
}
