package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a validator that understands shopspring decimals through the
// decimal_gt, decimal_gte, decimal_lt and decimal_lte tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	must(v.RegisterValidation("decimal_gt", compare(func(c int) bool { return c > 0 })))
	must(v.RegisterValidation("decimal_gte", compare(func(c int) bool { return c >= 0 })))
	must(v.RegisterValidation("decimal_lt", compare(func(c int) bool { return c < 0 })))
	must(v.RegisterValidation("decimal_lte", compare(func(c int) bool { return c <= 0 })))

	return v
}

func compare(accept func(int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return accept(value.Cmp(bound))
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Describe flattens validation errors into one readable line.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
