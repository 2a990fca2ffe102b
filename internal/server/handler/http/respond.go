package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hatchling/journal/internal/auth"
	"github.com/hatchling/journal/internal/billing"
	"github.com/hatchling/journal/internal/imageproc"
	"github.com/hatchling/journal/internal/models"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Failures are
// returned as *models.ValidationError.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.Invalid("", "invalid request body")
	}
	return validateRequest(dst)
}

func validateRequest(dst any) error {
	err := validate.Struct(dst)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return models.Invalid(field, field+" is required")
	case "oneof":
		return models.Invalid(field, fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
	case "min":
		return models.Invalid(field, fmt.Sprintf("%s must have a length of at least %s", field, fe.Param()))
	default:
		return models.Invalid(field, field+" is invalid")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors onto status codes. Unclassified errors are
// logged and answered with an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, imageproc.ErrInvalidSize),
		errors.Is(err, imageproc.ErrInvalidQuality),
		errors.Is(err, imageproc.ErrUnknownFilter),
		errors.Is(err, billing.ErrUnknownPlan):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrInvalidSignature):
		writeMessage(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, models.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, models.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrAlreadyExists):
		writeMessage(w, http.StatusConflict, "already exists")
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
