package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// formMessage turns the first validation failure into the user-facing flash
// wording. Field detail stays inline with the redirect target, not in an
// error body.
func formMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "Please fill all required fields."
	case "email":
		return "Please provide a valid email address."
	case "min":
		if fe.Field() == "Password" {
			return "Password must be at least " + fe.Param() + " characters long."
		}
		return "Value for " + fe.Field() + " is too small."
	case "eqfield":
		return "Passwords do not match."
	case "oneof":
		return "Correct answer must be A, B, C, or D."
	case "gt":
		return "All fields are required."
	default:
		return "Invalid input."
	}
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func formInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(formValue(r, key))
	return n
}
