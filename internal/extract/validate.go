package extract

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate returns the shared struct validator. It understands a "notblank"
// tag that rejects empty and whitespace-only strings.
func Validate() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("notblank", notBlank); err != nil {
			panic(err)
		}
	})
	return validate
}

func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		return strings.TrimSpace(f.String()) != ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return f.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !f.IsNil()
	default:
		return !f.IsZero()
	}
}

// ListOfLength accepts slices with exactly n elements.
func ListOfLength[E any](n int) Validator[[]E] {
	return func(v []E) error {
		if len(v) != n {
			return fmt.Errorf("array length %d != %d", len(v), n)
		}
		return nil
	}
}

// NonBlankItems rejects lists containing an empty or whitespace-only string.
func NonBlankItems(v []string) error {
	for i, s := range v {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("item %d is blank", i)
		}
	}
	return nil
}

// RequiredFields validates a struct's tags. With no field names the whole
// struct is checked; otherwise only the named fields are.
func RequiredFields[T any](fields ...string) Validator[T] {
	return func(v T) error {
		var err error
		if len(fields) == 0 {
			err = Validate().Struct(v)
		} else {
			err = Validate().StructPartial(v, fields...)
		}
		if err != nil {
			return fmt.Errorf("missing keys: %w", err)
		}
		return nil
	}
}

// All runs validators in order and returns the first failure.
func All[T any](validators ...Validator[T]) Validator[T] {
	return func(v T) error {
		for _, fn := range validators {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	}
}
