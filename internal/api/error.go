package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Message string `json:"error"`
}

var (
	InternalServerError = ErrorResponse{"Internal server error"} //nolint:gochecknoglobals // constant response
	BadRequestError     = ErrorResponse{"Bad request"}           //nolint:gochecknoglobals // constant response
	UnauthorizedError   = ErrorResponse{"Unauthorized"}          //nolint:gochecknoglobals // constant response
	CardNotFoundError   = ErrorResponse{"Card not found"}        //nolint:gochecknoglobals // constant response
)

func HTTPErrorHandler(log *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		log.ErrorContext(c.Request().Context(), "failed to process request", "error", err)

		var echoError *echo.HTTPError
		if !errors.As(err, &echoError) {
			if err := c.JSON(http.StatusInternalServerError, InternalServerError); err != nil { //nolint:govet // ignore shadow declaration
				log.ErrorContext(c.Request().Context(), "failed to write error response", "error", err)
			}
			return
		}

		message, ok := echoError.Message.(string)
		if !ok || message == "" || echoError.Code == http.StatusInternalServerError {
			message = InternalServerError.Message
		}
		if err := c.JSON(echoError.Code, ErrorResponse{Message: message}); err != nil { //nolint:govet // ignore shadow declaration
			log.ErrorContext(c.Request().Context(), "failed to write error response", "error", err)
		}
	}
}
