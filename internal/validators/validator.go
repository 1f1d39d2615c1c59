package validators

import (
	"net/http"
	"reflect"

	"github.com/anonto42/classifieds/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the marketplace-specific tags registered
func NewValidator() *Validator {
	return &Validator{validate: New()}
}

// Validate satisfies echo.Validator
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New returns a raw validator with the custom tags. Services use it directly so that
// validation happens before any remote call regardless of the transport.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", validateCategory)
	_ = v.RegisterValidation("attributes", validateAttributes)
	return v
}

func validateCategory(fl validator.FieldLevel) bool {
	return IsCategory(fl.Field().String())
}

// IsCategory reports whether c is one of the known listing categories
func IsCategory(c string) bool {
	for _, known := range models.Categories {
		if c == known {
			return true
		}
	}
	return false
}

// attribute values are limited to strings and numbers
func validateAttributes(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Map {
		return false
	}
	iter := field.MapRange()
	for iter.Next() {
		if !IsAttributeValue(iter.Value().Interface()) {
			return false
		}
	}
	return true
}

// IsAttributeValue reports whether v may be stored in a listing attribute map
func IsAttributeValue(v interface{}) bool {
	switch v.(type) {
	case string, float64, float32, int, int32, int64:
		return true
	}
	return false
}
