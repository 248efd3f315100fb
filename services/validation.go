package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// translateValidationErrors turns validator tag failures into a readable
// message listing every failed field
func translateValidationErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, "field "+e.Field()+" is required")
		case "gt":
			messages = append(messages, "field "+e.Field()+" must be greater than "+e.Param())
		case "gte":
			messages = append(messages, "field "+e.Field()+" must be at least "+e.Param())
		case "min":
			messages = append(messages, "field "+e.Field()+" must be at least "+e.Param())
		case "max":
			messages = append(messages, "field "+e.Field()+" must be at most "+e.Param())
		case "email":
			messages = append(messages, "field "+e.Field()+" must be a valid email address")
		case "oneof":
			messages = append(messages, "field "+e.Field()+" must be one of: "+e.Param())
		default:
			messages = append(messages, "field "+e.Field()+" is invalid")
		}
	}
	return strings.Join(messages, "; ")
}
