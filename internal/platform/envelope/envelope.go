// Package envelope writes every API response in one shape:
//
//	{"success": true,  "data": {...}}
//	{"success": false, "error": "amount must be greater than 0", "code": "validation"}
//
// Failures also repeat the error text under "message", which older inventory
// consumers read.
package envelope

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

// Response is the wire envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// OK writes a success envelope with status 200.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created writes a success envelope with status 201.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Fail writes a failure envelope.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{Success: false, Error: message, Message: message, Code: code})
}

// FromError converts err into the status and envelope it should produce.
func FromError(err error) (int, Response) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		return he.Code, Response{Error: msg, Message: msg, Code: codeForStatus(he.Code)}
	}

	status := apperr.StatusCode(err)
	resp := Response{Code: apperr.CodeOf(err)}
	if status == http.StatusInternalServerError && resp.Code == apperr.CodeInternal {
		resp.Error = "internal server error"
	} else {
		resp.Error = err.Error()
	}
	resp.Message = resp.Error

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	return status, resp
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.CodeValidation
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= 500 {
		return apperr.CodeInternal
	}
	return "error"
}

// ErrorHandler is installed as echo's HTTPErrorHandler. Internal failures are
// logged with their cause and reported to the caller without it.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, resp := FromError(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
