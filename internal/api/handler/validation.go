package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Rrens/partner-chat/internal/api/response"
)

var validate = validator.New()

// validateInput validates v and writes a 400 with per-field messages on failure
func validateInput(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		response.BadRequest(w, err.Error())
		return false
	}

	fields := make(map[string]string)
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			fields[e.Field()] = "field is required"
		case "max":
			fields[e.Field()] = "must be at most " + e.Param() + " characters"
		default:
			fields[e.Field()] = "validation failed on " + e.Tag()
		}
	}
	response.BadRequest(w, fields)
	return false
}
