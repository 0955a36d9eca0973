package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func envelope(status int, data interface{}) APIResponse {
	return APIResponse{Status: status, Message: http.StatusText(status), Data: data}
}

// DataResponse answers 200 with the given envelope status. Success
// envelopes always travel as HTTP 200 except AcceptedResponse.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(http.StatusOK, envelope(statusCode, data))
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return SuccessResponse(c, &ListData{Rows: rows, Total: total})
}

// AcceptedResponse answers 202 for work handed to background workers.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusAccepted, envelope(http.StatusAccepted, data))
}

// BadRequestResponse answers 400, typically with validation details.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusBadRequest, envelope(http.StatusBadRequest, data))
}

// AppErrorResponse answers with the status carried by an *AppError, or a
// generic 500 for anything else.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return c.JSON(http.StatusInternalServerError, envelope(http.StatusInternalServerError, "Something went wrong"))
	}
	return c.JSON(appErr.Status, envelope(appErr.Status, []*AppError{appErr}))
}
