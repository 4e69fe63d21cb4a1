package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
	"github.com/noah-isme/dont-forgetter-api/pkg/timemath"
)

// NewValidator returns a validator with the scheduling tags used by the DTOs registered:
// evdate, evtime, utcoffset, period, interval and customvars.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "evdate", func(fl validator.FieldLevel) bool {
		return timemath.ValidateDate(fl.Field().String()) == nil
	})
	mustRegister(v, "evtime", func(fl validator.FieldLevel) bool {
		return timemath.ValidateClock(fl.Field().String()) == nil
	})
	mustRegister(v, "utcoffset", func(fl validator.FieldLevel) bool {
		return timemath.ValidateOffset(fl.Field().String()) == nil
	})
	mustRegister(v, "period", func(fl validator.FieldLevel) bool {
		return timemath.ValidatePeriod(fl.FieldName(), fl.Field().String()) == nil
	})
	mustRegister(v, "interval", func(fl validator.FieldLevel) bool {
		return timemath.ValidateInterval(fl.Field().String()) == nil
	})
	mustRegister(v, "customvars", func(fl validator.FieldLevel) bool {
		_, err := ParseCustomVariables(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// validationError converts validator and timemath failures into an API validation error that
// names the offending fields.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		names := make([]string, 0, len(fieldErrs))
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			names = append(names, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			fields = append(fields, fe.Field())
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message+": "+strings.Join(names, ", ")).WithFields(fields...)
	}
	var formatErr *timemath.FormatError
	if errors.As(err, &formatErr) {
		return appErrors.Wrap(err, appErrors.ErrFormat.Code, appErrors.ErrFormat.Status, formatErr.Error()).WithFields(formatErr.Field)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
