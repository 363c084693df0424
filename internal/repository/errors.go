package repository

import "errors"

var (
	// 対象の行がない
	ErrNotFound = errors.New("not found")

	// ユニーク制約違反
	ErrDuplicate = errors.New("duplicate")

	// やり直せば通る可能性があるエラー（直列化失敗・デッドロック・ロック待ちタイムアウト・接続断）
	ErrTransient = errors.New("transient storage error")
)
