package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"authguard/internal/apperrors"
	"authguard/internal/auth"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const internalErrorMessage = "Something went wrong, try again later"

// ErrorHandler renders the last error attached with c.Error as the JSON
// failure envelope, unless the handler already wrote a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, resp := Render(err)
		if status == http.StatusInternalServerError {
			log.WithError(err).WithFields(log.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Error("Unhandled request error")
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

// StatusFor returns the status ErrorHandler will use for err
func StatusFor(err error) int {
	status, _ := Render(err)
	return status
}

// Render translates err into a status code and failure body
func Render(err error) (int, models.ErrorResponse) {
	fail := func(status int, message, code string) (int, models.ErrorResponse) {
		return status, models.ErrorResponse{Success: false, Message: message, Code: code}
	}

	if appErr, ok := apperrors.As(err); ok {
		return fail(appErr.Status(), appErr.Message, appErr.Code)
	}

	var invalidID *apperrors.InvalidIDError
	if errors.As(err, &invalidID) {
		return fail(http.StatusNotFound, fmt.Sprintf("No item found with id: %s", invalidID.Value), "")
	}

	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return fail(http.StatusConflict, fmt.Sprintf("Duplicate value entered for %s field", dup.Field), "")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		field := pqErr.Column
		if field == "" {
			field = pqErr.Constraint
		}
		return fail(http.StatusConflict, fmt.Sprintf("Duplicate value entered for %s field", field), "")
	}

	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return fail(http.StatusUnauthorized, "Your token has expired. Please log in again.", "token_expired")
	case errors.Is(err, auth.ErrInvalidToken):
		return fail(http.StatusUnauthorized, "Invalid token. Please log in again.", "")
	case errors.Is(err, repository.ErrUserNotFound):
		return fail(http.StatusNotFound, "User not found", "")
	case errors.Is(err, repository.ErrSessionNotFound):
		return fail(http.StatusNotFound, "Session not found", "")
	case errors.Is(err, repository.ErrSecurityEventNotFound):
		return fail(http.StatusNotFound, "Security event not found", "")
	case errors.Is(err, repository.ErrNotFound):
		return fail(http.StatusNotFound, "Resource not found", "")
	case errors.Is(err, repository.ErrAlreadyResolved):
		return fail(http.StatusBadRequest, "Security event already resolved", "")
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fail(http.StatusBadRequest, validationMessage(verrs), "")
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fail(http.StatusBadRequest, "Invalid request body", "")
	}
	if errors.Is(err, io.EOF) {
		return fail(http.StatusBadRequest, "Request body is required", "")
	}

	return fail(http.StatusInternalServerError, internalErrorMessage, "")
}

func validationMessage(verrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return strings.Join(messages, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "nospaces":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "otpcode":
		return fmt.Sprintf("%s must be a 6 digit code", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
