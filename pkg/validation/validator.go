package validation

import (
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Three letters in either case; callers normalize to uppercase downstream.
var currencyCodePattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Validator returns the shared validator instance with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("currency_code", validateCurrencyCode)
		_ = validate.RegisterValidation("rate_date", validateRateDate)
	})
	return validate
}

// ValidateStruct validates a struct and converts field errors into a
// ValidationError.
func ValidateStruct(s interface{}) error {
	if err := Validator().Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(errs)
		}
		return err
	}
	return nil
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodePattern.MatchString(fl.Field().String())
}

// validateRateDate accepts YYYY-MM-DD values up to and including today (UTC).
func validateRateDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return false
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return !d.After(today)
}
