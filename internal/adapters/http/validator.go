package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/userdirectory/core/internal/domain/entities"
)

// CustomValidator wraps the validator and reports the first failing field as
// an entities.ValidationError named by its JSON key.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the validator installed on the Echo instance
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	first := verrs[0]
	if first.Tag() != "required" {
		return err
	}
	return &entities.ValidationError{Field: first.Field()}
}
