package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	repo "storefront/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type TxExecutorOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// 全試行を通した上限。0なら呼び出し元のctxだけ
	Timeout time.Duration
}

func DefaultTxExecutorOptions() TxExecutorOptions {
	return TxExecutorOptions{
		MaxAttempts:    5,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     time.Second,
		Timeout:        10 * time.Second,
	}
}

// Txを開いて作業単位を実行し、一時的なエラーなら作業単位ごとやり直す。
type TxExecutor struct {
	tx   repo.TransactionManager
	opts TxExecutorOptions
	log  *zap.Logger
}

func NewTxExecutor(tx repo.TransactionManager, opts TxExecutorOptions, log *zap.Logger) *TxExecutor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TxExecutor{tx: tx, opts: opts, log: log}
}

func IsTransient(err error) bool {
	return errors.Is(err, repo.ErrTransient)
}

// fnは毎回最新の状態を読み直すこと（途中から再開はしない）。
// 業務エラーはそのまま即返す。
func (e *TxExecutor) RunWithRetry(ctx context.Context, fn func(ctx context.Context, r repo.TxRepos) error) error {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.InitialBackoff
	eb.MaxInterval = e.opts.MaxBackoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.opts.MaxAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := e.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return fn(ctx, r)
		})
		if err == nil {
			return nil
		}
		if IsTransient(err) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		e.log.Warn("transient storage error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: after %d attempt(s): %w", ErrTimeout, attempt, err)
	case IsTransient(err):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: after %d attempt(s): %w", ErrTimeout, attempt, ctxErr)
		}
		e.log.Error("transaction retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
		return fmt.Errorf("%w: after %d attempt(s): %w", ErrRetriesExhausted, attempt, err)
	default:
		return err
	}
}

// 値を返す作業単位用
func RunWithRetryValue[T any](ctx context.Context, e *TxExecutor, fn func(ctx context.Context, r repo.TxRepos) (T, error)) (T, error) {
	var out T
	err := e.RunWithRetry(ctx, func(ctx context.Context, r repo.TxRepos) error {
		v, err := fn(ctx, r)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
