package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Input limits.
const (
	MaxNameLength          = 255
	MaxDescriptionLength   = 1000
	MaxURLLength           = 2048
	MaxVersionLength       = 50
	MinDocumentationLength = 100
	MinJustification       = 50
	MaxJustification       = 2000
	MinReviewTextLength    = 20
	MaxReviewTextLength    = 1000
	MaxPublishNotesLength  = 500
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared input validator. It understands the custom
// "semver" tag, compares decimals numerically and reports fields by their
// json name.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			_, err := semver.StrictNewVersion(fl.Field().String())
			return err == nil
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// validateStruct runs the validator and converts failures into a
// validation error carrying one message per field.
func validateStruct(op string, s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.KindValidation, op, "invalid input")
	}

	var fe apperrors.FieldErrors
	for _, fieldErr := range verrs {
		fe.Add(fieldPath(fieldErr), tagMessage(fieldErr))
	}
	return fe.ToError(op)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		return "is required"
	case "required_if":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url", "http_url":
		return "must be a valid URL"
	case "semver":
		return "must be a semantic version such as 1.0.0"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// textLength validates the trimmed rune length of free text.
func textLength(fe *apperrors.FieldErrors, field, value string, min, max int) {
	n := len([]rune(strings.TrimSpace(value)))
	switch {
	case n < min:
		if min == 1 {
			fe.Add(field, "is required")
			return
		}
		fe.Addf(field, "must be at least %d characters", min)
	case max > 0 && n > max:
		fe.Addf(field, "must be at most %d characters", max)
	}
}
