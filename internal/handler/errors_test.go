package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad id", usecase.ErrInvalidInput), http.StatusBadRequest},
		{usecase.ErrUnauthorized, http.StatusUnauthorized},
		{usecase.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: order 9", usecase.ErrNotFound), http.StatusNotFound},
		{usecase.ErrAlreadyCancelled, http.StatusConflict},
		{usecase.ErrInvalidTransition, http.StatusConflict},
		{usecase.ErrOutOfStock, http.StatusConflict},
		{usecase.ErrIdempotencyConflict, http.StatusConflict},
		{fmt.Errorf("%w: after 5 attempt(s): %w", usecase.ErrRetriesExhausted, usecase.ErrTransient), http.StatusServiceUnavailable},
		{usecase.ErrTransient, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: deadline", usecase.ErrTimeout), http.StatusGatewayTimeout},
		{errors.New("pq: something broke"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		require.NoError(t, writeError(c, tt.err))
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.NotEmpty(t, body.Error)
		//内部の文言は出さない
		assert.NotContains(t, body.Error, "order 9")
		assert.NotContains(t, body.Error, "pq:")
	}
}
