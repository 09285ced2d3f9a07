// Package paymentmethods serves the offline payment options shown at checkout.
package paymentmethods

import (
	"context"
	"time"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

const cacheName = "payment_methods"

// Provider fetches all active payment methods.
type Provider interface {
	ActiveMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

// Static serves a fixed list.
type Static []models.PaymentMethod

func (s Static) ActiveMethods(context.Context) ([]models.PaymentMethod, error) {
	return append([]models.PaymentMethod(nil), s...), nil
}

// Cached is a read-through redis cache in front of another Provider.
type Cached struct {
	next  Provider
	store redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCached(next Provider, store redis.CacheStore, ttl time.Duration, logg *logger.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, logg: logg}
}

func (c *Cached) ActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	key := c.store.CacheKey(cacheName)
	var methods []models.PaymentMethod
	found, err := redis.GetJSON(ctx, c.store, key, &methods)
	if err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "payment method cache read failed")
	}
	if found {
		return methods, nil
	}

	methods, err = c.next.ActiveMethods(ctx)
	if err != nil {
		return nil, err
	}
	if err := redis.SetJSON(ctx, c.store, key, methods, c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "payment method cache write failed")
	}
	return methods, nil
}
