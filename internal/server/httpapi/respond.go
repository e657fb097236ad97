package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; bcrypt limits passwords by bytes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. The returned error
// wraps errBadRequest and carries a client-safe message.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", errBadRequest)
	}

	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("%w: %s", errBadRequest, describe(ve[0]))
		}
		return fmt.Errorf("%w: invalid request", errBadRequest)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "email":
		return fmt.Sprintf("field '%s' must be a valid email address", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s characters long", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("field '%s' must be at most %s bytes long", field, fe.Param())
	case "len":
		return fmt.Sprintf("field '%s' must be exactly %s characters long", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("field '%s' must contain only digits", field)
	case "uuid":
		return fmt.Sprintf("field '%s' must be a valid UUID", field)
	default:
		return fmt.Sprintf("field '%s' validation failed on tag '%s'", field, fe.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised is
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")
	case errors.Is(err, common.ErrPasswordTooLong):
		return http.StatusBadRequest, "Password must be at most 72 bytes long"
	case errors.Is(err, common.ErrDuplicateAccount):
		return http.StatusConflict, "Email already exists"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, common.ErrInactiveUser):
		return http.StatusUnauthorized, "User is inactive"
	case errors.Is(err, common.ErrTwoFactorNotEnabled):
		return http.StatusUnauthorized, "Two-factor authentication is not enabled"
	case errors.Is(err, common.ErrInvalidCode):
		return http.StatusUnauthorized, "Wrong authentication code"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "Access token expired"
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
