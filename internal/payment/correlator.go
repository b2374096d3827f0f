package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

// CorrelationStore is the minimal redis surface the correlator needs.
type CorrelationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	CorrelationKey(txnRef string) string
}

// Correlator maps the gateway's opaque transaction reference back to the
// originating order. Entries expire after the configured TTL and are not
// durable across restarts; a lost mapping fails the callback and the retry
// endpoint issues a fresh payment URL instead.
type Correlator struct {
	store CorrelationStore
	ttl   time.Duration
}

// NewCorrelator builds the correlator. The TTL must cover the payment link
// expiry so a legitimate callback can never find a missing mapping.
func NewCorrelator(store CorrelationStore, ttl time.Duration) (*Correlator, error) {
	if store == nil {
		return nil, errors.New("correlation store required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Correlator{store: store, ttl: ttl}, nil
}

// Put stores txnRef -> orderID with the configured TTL.
func (c *Correlator) Put(ctx context.Context, txnRef string, orderID uuid.UUID) error {
	if txnRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	key := c.store.CorrelationKey(txnRef)
	if err := c.store.Set(ctx, key, orderID.String(), c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing correlation")
	}
	return nil
}

// Get resolves txnRef to the order it was issued for. A missing or expired
// mapping is unrecoverable for the callback path.
func (c *Correlator) Get(ctx context.Context, txnRef string) (uuid.UUID, error) {
	if txnRef == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	value, err := c.store.Get(ctx, c.store.CorrelationKey(txnRef))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnknownTransaction, "transaction reference not found or expired")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading correlation")
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt correlation value")
	}
	return orderID, nil
}
