package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"

	repo "storefront/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
)

// ドライバのエラーを repository のセンチネルに寄せる。
// 元のエラーは %w で残すので errors.As で中身も見られる。
func classify(err error) error {
	if err == nil {
		return nil
	}
	//分類済み
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrDuplicate) || errors.Is(err, repo.ErrTransient) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", repo.ErrDuplicate, err)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable,
			pgQueryCanceled, pgAdminShutdown, pgCannotConnectNow:
			return fmt.Errorf("%w: %w", repo.ErrTransient, err)
		}
		return err
	}

	//接続断など
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) ||
		pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", repo.ErrTransient, err)
	}
	return err
}
