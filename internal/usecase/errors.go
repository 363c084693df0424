package usecase

import (
	"errors"

	repo "storefront/internal/repository"
)

// usecase層のエラー種別。handlerでHTTPステータスに変換する。
// 文言はログ用で、外には出さない。
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// 存在しない or 他人のもの（区別しない）
	ErrNotFound = errors.New("not found")

	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOutOfStock        = errors.New("out of stock")

	// 同じ冪等キーの別リクエストが処理中で、結果がまだ読めない
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// Executorの中で吸収される。リトライを使い切るとErrRetriesExhaustedになる
	ErrTransient        = repo.ErrTransient
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrTimeout          = errors.New("timeout")
)
