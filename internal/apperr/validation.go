package apperr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Invalid converts a validator failure into ErrValidation with a readable
// message naming every offending field.
func Invalid(err error) *Error {
	return ErrValidation.WithMessage("%s", Describe(err)).Wrap(err)
}

// Describe turns validator errors into a readable sentence.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fe.Param())
		case "max":
			if fe.Kind() == reflect.String {
				msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
			} else {
				msgs = append(msgs, field+" must be at most "+fe.Param())
			}
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "uuid":
			msgs = append(msgs, field+" must be a valid id")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
