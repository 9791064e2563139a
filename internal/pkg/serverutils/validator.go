package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"docqa-be/pkg/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Page images are resized to dimensions the vision models tile in 28px patches.
	_ = v.RegisterValidation("multiple28", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= 28 && n%28 == 0
	})
	return v
}

// ValidateRequest checks the struct's validate tags. Failures wrap
// apperr.ErrInvalidInput and name every offending field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "multiple28":
		return fmt.Sprintf("%s must be a positive multiple of 28", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
