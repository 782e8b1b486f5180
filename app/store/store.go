package store

import (
	"context"
	"errors"

	"github.com/velorum-store/ms-go-checkout/app/entity"
)

var ErrTokenNotFound = errors.New("checkout token not found")

// TokenStore keeps the single active checkout token per order. Entries
// expire by TTL. Get returns a version that CompareAndSwap requires, so the
// validator's read-check-increment sequence stays atomic even when the
// backing store is shared between processes.
type TokenStore interface {
	Put(ctx context.Context, orderID uint64, token *entity.CheckoutToken) error
	Get(ctx context.Context, orderID uint64) (*entity.CheckoutToken, uint64, error)
	CompareAndSwap(ctx context.Context, orderID uint64, version uint64, token *entity.CheckoutToken) (bool, error)
	Delete(ctx context.Context, orderID uint64) error
}
