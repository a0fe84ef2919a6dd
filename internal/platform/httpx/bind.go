package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Bind decodes the JSON body into target and validates its struct tags. On
// failure it writes the problem response and returns false.
func Bind(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := DecodeJSON(r, target); err != nil {
		Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if fields := ValidateStruct(target); len(fields) > 0 {
		RespondValidation(w, fields)
		return false
	}
	return true
}

// ValidateStruct returns a field -> message map, empty when target is valid.
func ValidateStruct(target any) map[string]string {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["general"] = err.Error()
		return fields
	}
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = describe(fieldErr)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in the format " + fe.Param()
	case "gtfield", "gtefield":
		return "must not be before " + fe.Param()
	default:
		return "is invalid"
	}
}
