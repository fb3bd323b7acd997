package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rijksuitgaven/mailengine/internal/pkg/httputil"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

// configError reports a missing dependency as a 500 without leaking
// details. The process keeps serving the other endpoints.
func configError(w http.ResponseWriter, what string) {
	logger.Error("api: not configured", "component", what)
	httputil.Error(w, http.StatusInternalServerError, what+" not configured")
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response and returns false on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !httputil.Decode(w, r, h.adminMaxBody, dst) {
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.BadRequest(w, validationMessage(err))
		return false
	}
	return true
}
