package model

import "strconv"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 認証済みユーザー。JWTミドルウェアが作って渡す
type AuthenticatedUser struct {
	ID   int64
	Role Role
}

func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// 在庫ログの performed_by 用
func (u AuthenticatedUser) PerformedBy() string {
	if u.ID <= 0 {
		return "system"
	}
	return strconv.FormatInt(u.ID, 10)
}
