// Package httpx holds the response envelope and error translation shared by
// all HTTP handlers.
package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/policy"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// OK writes a success envelope with the given status.
func OK(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope with the given status.
func Fail(c echo.Context, status int, message string, errs ...string) error {
	return c.JSON(status, Envelope{Success: false, Message: message, Errors: errs})
}

// Error translates service errors to envelope responses: policy denials to
// 403 (404 when the kind conceals denials), the supplied not-found sentinels
// to 404, everything else to 500 without leaking the cause.
func Error(c echo.Context, err error, notFound ...error) error {
	var denied *policy.DeniedError
	if errors.As(err, &denied) {
		if denied.Decision.ConcealNotFound {
			return Fail(c, http.StatusNotFound, "resource not found")
		}
		return Fail(c, http.StatusForbidden, "access denied", denied.Decision.Reason)
	}
	for _, sentinel := range notFound {
		if errors.Is(err, sentinel) {
			return Fail(c, http.StatusNotFound, sentinel.Error())
		}
	}
	return Fail(c, http.StatusInternalServerError, "internal server error")
}
