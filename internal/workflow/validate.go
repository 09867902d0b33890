package workflow

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/custody_admin/internal/model"
)

var (
	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	digitsPattern  = regexp.MustCompile(`^[0-9]+$`)
)

var fieldMessages = map[string]string{
	"nonblank":         "is required",
	"positive_decimal": "must be a positive number",
	"positive_int":     "must be a positive whole number",
	"digits":           "must contain digits only",
	"bankcode":         "is not a supported bank",
	"rail":             "must be 9psb or safe_haven",
	"email":            "must be an email address",
	"oneof":            "has an unsupported value",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	must("positive_decimal", func(fl validator.FieldLevel) bool {
		return IsPositiveDecimal(fl.Field().String())
	})
	must("positive_int", func(fl validator.FieldLevel) bool {
		_, ok := ParsePositiveInt(fl.Field().String())
		return ok
	})
	must("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	must("bankcode", func(fl validator.FieldLevel) bool {
		_, ok := model.BankByCode(fl.Field().String())
		return ok
	})
	must("rail", func(fl validator.FieldLevel) bool {
		return model.Rail(fl.Field().String()).Valid()
	})
	return v
}

var validate = newValidator()

// validateForm переводит ошибки validator в ValidationError.
func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		if _, seen := out.Fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}

// IsPositiveDecimal строка без знака и экспоненты, строго больше нуля.
func IsPositiveDecimal(s string) bool {
	if !decimalPattern.MatchString(s) {
		return false
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsPositive()
}

func ParsePositiveInt(s string) (int64, bool) {
	if !digitsPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SanitizeDecimal оставляет цифры и точку. Ввод со второй точкой отклоняется,
// остаётся prev.
func SanitizeDecimal(prev, typed string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, typed)
	if strings.Count(cleaned, ".") > 1 {
		return prev
	}
	return cleaned
}

// SanitizeDigits оставляет только цифры.
func SanitizeDigits(typed string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, typed)
}
