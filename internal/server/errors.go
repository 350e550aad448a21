package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AntonTsoy/auth-service/internal/apperr"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const msgInternal = "Internal Server Error"

// ErrorHandler is the single place where handler errors become responses.
// Handlers record errors with c.Error and return without writing a body. With
// debug set, the error chain is echoed back under "stack".
func ErrorHandler(log *slog.Logger, debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, message := translate(err)

		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request.Context(), "request failed",
				"method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "error", err)
		} else {
			log.DebugContext(c.Request.Context(), "request rejected",
				"method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "error", err)
		}

		body := gin.H{"success": false, "message": message}
		if debug {
			body["stack"] = err.Error()
		}
		c.AbortWithStatusJSON(status, body)
	}
}

// Recovery turns panics into the same JSON shape as other internal errors.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered",
			"method", c.Request.Method, "path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternal})
	})
}

func translate(err error) (int, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.Status(ae.Kind), ae.Message
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, validationMessage(ve)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, "Invalid request body"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, token.ErrTokenExpired):
		return http.StatusUnauthorized, "Token Expired"
	case errors.Is(err, token.ErrTokenMalformed):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, user.ErrEmailTaken):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "User not found"
	}
	return http.StatusInternalServerError, msgInternal
}

func validationMessage(ve validator.ValidationErrors) string {
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, "Please provide a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters long", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters long", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
