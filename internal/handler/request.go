package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/auth"
)

// maxBodyBytes caps request bodies. Descriptions are the largest field.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match
// what the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads r's body into dst and runs its validate tags.
// Every failure is an apperror validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "request body is required")
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("", "request body is too large")
		}
		return apperror.ValidationFailed("", "invalid JSON request body")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return apperror.ValidationFailed("", "invalid request")
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return apperror.ValidationFailed(field, msg)
}

// callerEmail returns the authenticated e-mail set by auth.RequireAuth.
func callerEmail(r *http.Request) (string, error) {
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthenticated("valid authentication required")
	}
	return email, nil
}

// pathParam returns an unescaped chi URL parameter ("a%40b.com" → "a@b.com").
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
