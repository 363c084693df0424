package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type IdempotencyRepository interface {
	// なければ ErrNotFound
	Find(ctx context.Context, scope, key string) (model.IdempotencyRecord, error)

	// (scope, key) が既にあれば ErrDuplicate
	Create(ctx context.Context, rec model.IdempotencyRecord) error
}
