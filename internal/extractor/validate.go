package extractor

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrNilValue is the cause reported when a decoded value is nil, as happens
// for a JSON body of "null" decoded into a pointer.
var ErrNilValue = errors.New("value is null")

// Validated checks the extracted struct against its `validate` tags.
func Validated[T any](e Extractor[T]) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		v, err := e.Extract(in)
		if err != nil {
			return v, err
		}
		if isNil(v) {
			return v, &httperr.Error{Status: http.StatusBadRequest, Message: "Validation failed", Cause: ErrNilValue}
		}
		if err := validate.Struct(v); err != nil {
			var invalid *validator.InvalidValidationError
			if errors.As(err, &invalid) {
				return v, httperr.InternalServerError(fmt.Errorf("validate %T: %w", v, err))
			}
			return v, &httperr.Error{Status: http.StatusBadRequest, Message: "Validation failed", Cause: err}
		}
		return v, nil
	})
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// FieldErrors maps the failing fields of a validation error to the tag that
// rejected them, or returns nil when err is not a validation error.
func FieldErrors(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
