package handler

import (
	"errors"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// usecaseのエラー → HTTPステータス。上から順に見る
var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{usecase.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
	{usecase.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{usecase.ErrForbidden, http.StatusForbidden, "forbidden"},
	{usecase.ErrNotFound, http.StatusNotFound, "not found"},
	{usecase.ErrAlreadyCancelled, http.StatusConflict, "order already cancelled"},
	{usecase.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
	{usecase.ErrOutOfStock, http.StatusConflict, "out of stock"},
	{usecase.ErrIdempotencyConflict, http.StatusConflict, "request with this idempotency key is in progress"},
	{usecase.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{usecase.ErrRetriesExhausted, http.StatusServiceUnavailable, "temporarily unavailable"},
	{usecase.ErrTransient, http.StatusServiceUnavailable, "temporarily unavailable"},
}

// 内部の文言は返さない
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return c.JSON(e.status, ErrorResponse{Error: e.message})
		}
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
