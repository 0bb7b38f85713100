// Package handlers exposes the mind-map view service over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"mindmap-backend/pkg/api"
	appErrors "mindmap-backend/pkg/errors"
)

// maxBodyBytes caps RPC request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into dst and validates it.
func decodeRequest(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return appErrors.NewValidationError("invalid request body").WithCause(err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return appErrors.NewValidationError(fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag())).WithCause(err)
		}
		return appErrors.NewValidationError(err.Error()).WithCause(err)
	}
	return nil
}

// handleServiceError converts service errors to the error envelope.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := appErrors.HTTPStatus(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Warn("Request rejected", fields...)
	}
	api.Error(w, status, appErrors.PublicMessage(err))
}

// queryState flattens the query string into view filter state.
func queryState(r *http.Request) map[string]string {
	q := r.URL.Query()
	state := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			state[k] = v[0]
		}
	}
	return state
}
