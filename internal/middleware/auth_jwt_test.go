package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

const testSecret = "test-secret"

func mustMakeJWT(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = 9999999999
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func userToken(t *testing.T, sub any, role string) string {
	t.Helper()
	return mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": sub, "role": role}, jwt.SigningMethodHS256)
}

func runRequest(t *testing.T, e *echo.Echo, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func protectedEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.JSON(http.StatusOK, mwOKResponse{UserID: u.ID, Role: string(u.Role)})
	}, mw...)
	return e
}

func TestAuthJWT_Unauthorized(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "bad scheme", header: "Token abc.def.ghi"},
		{name: "empty token", header: "Bearer  "},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "bad signature", header: "Bearer " + mustMakeJWT(t, "wrong", jwt.MapClaims{"sub": 1, "role": "USER"}, jwt.SigningMethodHS256)},
		{name: "wrong alg", header: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": 1, "role": "USER"}, jwt.SigningMethodHS512)},
		{name: "expired", header: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": 1, "role": "USER", "exp": 1}, jwt.SigningMethodHS256)},
		{name: "missing sub", header: "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"role": "USER"}, jwt.SigningMethodHS256)},
		{name: "zero sub", header: "Bearer " + userToken(t, 0, "USER")},
		{name: "unknown role", header: "Bearer " + userToken(t, 1, "ROOT")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runRequest(t, protectedEcho(middleware.AuthJWT(cfg)), "/protected", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body mwErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body.Error)
		})
	}
}

func TestAuthJWT_SetsAuthenticatedUser(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	for _, sub := range []any{123, "123"} {
		rec := runRequest(t, protectedEcho(middleware.AuthJWT(cfg)), "/protected", "Bearer "+userToken(t, sub, "USER"))
		require.Equal(t, http.StatusOK, rec.Code)

		var body mwOKResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, int64(123), body.UserID)
		assert.Equal(t, "USER", body.Role)
	}
}

func TestAdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	e := protectedEcho(middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

	rec := runRequest(t, e, "/protected", "Bearer "+userToken(t, 5, "USER"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runRequest(t, e, "/protected", "Bearer "+userToken(t, 1, "ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	//AuthJWTなしで使うと401
	rec = runRequest(t, protectedEcho(middleware.AdminRoleGuard()), "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
