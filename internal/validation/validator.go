// Package validation provides custom validators for the application
package validation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	once           sync.Once
)

// Initialize registers all custom validators with gin's binding engine.
// Repeated calls are no-ops.
func Initialize() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("nospaces", validateNoSpaces); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("otpcode", validateOTPCode); err != nil {
			panic(err)
		}
	})
}

// validateNoSpaces checks if a string contains non-space characters
func validateNoSpaces(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return strings.TrimSpace(value) != ""
}

// validateOTPCode accepts exactly six digits
func validateOTPCode(fl validator.FieldLevel) bool {
	return otpCodePattern.MatchString(fl.Field().String())
}
