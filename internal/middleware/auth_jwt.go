package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // int64
	CtxUserRoleKey = "user_role" // string
	CtxUserKey     = "auth_user" // model.AuthenticatedUser
)

// Authorization: Bearer のHS256トークンを検証してユーザーをcontextに入れる。
// 失敗は理由を問わず401
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyFunc)
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			user, err := userFromClaims(claims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, user.ID)
			c.Set(CtxUserRoleKey, string(user.Role))
			c.Set(CtxUserKey, user)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// sub と role（USER/ADMIN）が必須
func userFromClaims(claims jwt.MapClaims) (model.AuthenticatedUser, error) {
	userID, err := parseUserID(claims["sub"])
	if err != nil {
		return model.AuthenticatedUser{}, err
	}
	if userID <= 0 {
		return model.AuthenticatedUser{}, errors.New("invalid sub")
	}
	role, err := parseRole(claims["role"])
	if err != nil {
		return model.AuthenticatedUser{}, err
	}
	return model.AuthenticatedUser{ID: userID, Role: role}, nil
}

// AuthJWTが入れたユーザーを取り出す
func CurrentUser(c echo.Context) (model.AuthenticatedUser, bool) {
	u, ok := c.Get(CtxUserKey).(model.AuthenticatedUser)
	if !ok || u.ID <= 0 {
		return model.AuthenticatedUser{}, false
	}
	return u, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// user_idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

func parseRole(v interface{}) (model.Role, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid role")
	}
	switch r := model.Role(s); r {
	case model.RoleUser, model.RoleAdmin:
		return r, nil
	}
	return "", errors.New("unknown role")
}
