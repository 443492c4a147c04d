package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/session"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

// ErrorHandler turns the error a handler reported with c.Error into a response.
// A 401 from the API anywhere ends the session; everything else becomes an
// inline alert and leaves the session alone.
func ErrorHandler(guard *Guard, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		err := last.Err

		if errors.Is(err, gateway.ErrUnauthorized) {
			logger.Info("API rejected the session token", zap.String("path", c.Request.URL.Path))
			guard.Unauthenticated(c)
			return
		}

		status, body := describe(last)
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		} else {
			logger.Debug("Request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func describe(ginErr *gin.Error) (int, views.AlertBody) {
	err := ginErr.Err

	if ginErr.IsType(gin.ErrorTypeBind) {
		return http.StatusBadRequest, views.AlertBody{Alert: views.ErrorAlert("Invalid request: " + err.Error())}
	}

	if fields, ok := validate.As(err); ok {
		return http.StatusBadRequest, views.AlertBody{
			Alert:  views.ErrorAlert("Please correct the highlighted fields"),
			Errors: fields,
		}
	}

	if errors.Is(err, session.ErrInvalidCredentials) {
		return http.StatusUnauthorized, views.AlertBody{Alert: views.ErrorAlert("Invalid username or password")}
	}

	if errors.Is(err, workflows.ErrForbidden) {
		return http.StatusForbidden, views.AlertBody{
			Alert: views.ErrorAlert("You are not allowed to do this with the closure in its current state"),
		}
	}

	if errors.Is(err, workflows.ErrUnsigned) {
		return http.StatusBadRequest, views.AlertBody{
			Alert:  views.ErrorAlert(workflows.ErrUnsigned.Error()),
			Errors: map[string]string{"digital_signature": "required"},
		}
	}
	if errors.Is(err, workflows.ErrNoDocuments) {
		return http.StatusBadRequest, views.AlertBody{
			Alert:  views.ErrorAlert(workflows.ErrNoDocuments.Error()),
			Errors: map[string]string{"documents": "at least one document is required"},
		}
	}

	if errors.Is(err, views.ErrNotFound) {
		return http.StatusNotFound, views.AlertBody{Alert: views.ErrorAlert("Not found")}
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		message := apiErr.Message
		if status == http.StatusNotFound {
			message = "Not found"
		}
		return status, views.AlertBody{Alert: views.ErrorAlert(message), Errors: apiErr.Fields}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, views.AlertBody{
			Alert: views.ErrorAlert("The closures service did not answer in time"),
		}
	}

	return http.StatusBadGateway, views.AlertBody{
		Alert: views.ErrorAlert("The closures service is unavailable, please try again"),
	}
}
