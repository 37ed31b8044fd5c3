package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"
	jsonres "digitalMenu/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var statusByCode = map[domain.ErrorCode]int{
	domain.CodeValidation:              http.StatusBadRequest,
	domain.CodeAuthenticationRequired:  http.StatusUnauthorized,
	domain.CodeForbidden:               http.StatusForbidden,
	domain.CodeNotFound:                http.StatusNotFound,
	domain.CodeProductNotFound:         http.StatusUnprocessableEntity,
	domain.CodeInvalidTransition:       http.StatusConflict,
	domain.CodeNoPendingOrders:         http.StatusConflict,
	domain.CodeOrderPersistenceFailure: http.StatusInternalServerError,
	domain.CodeUpstreamFailure:         http.StatusBadGateway,
	domain.CodeLedgerWriteFailure:      http.StatusBadGateway,
}

// StatusFor returns the HTTP status of a coded error.
func StatusFor(code domain.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler is installed as echo's HTTPErrorHandler. Every failed request
// gets the same envelope with an explicit retryable flag.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := render(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	} else {
		logger.Debug("Request rejected", "method", c.Request().Method, "path", c.Path(), "status", status, "code", body.Code)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error("Failed to write error response", err)
	}
}

func render(err error) (int, jsonres.ErrorBody) {
	var coded *domain.Error
	if errors.As(err, &coded) {
		if fields := invalidFields(coded); fields != nil {
			return StatusFor(coded.Code), jsonres.Error(string(coded.Code), coded.Error(), fields)
		}
		return StatusFor(coded.Code), jsonres.RetryableError(string(coded.Code), coded.Error(), coded.Retryable())
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, jsonres.RetryableError(codeForStatus(he.Code), msg, he.Code == http.StatusTooManyRequests)
	}

	return http.StatusInternalServerError, jsonres.RetryableError("INTERNAL_ERROR", "internal server error", false)
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// invalidFields lists the failed struct rules behind a validation error.
func invalidFields(coded *domain.Error) []fieldError {
	var verrs validator.ValidationErrors
	if coded.Code != domain.CodeValidation || !errors.As(coded.Cause, &verrs) {
		return nil
	}
	fields := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return fields
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domain.CodeValidation)
	case http.StatusUnauthorized:
		return string(domain.CodeAuthenticationRequired)
	case http.StatusForbidden:
		return string(domain.CodeForbidden)
	case http.StatusNotFound:
		return string(domain.CodeNotFound)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "HTTP_ERROR"
	}
}
