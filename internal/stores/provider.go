// Package stores serves the physical shops available for pickup.
package stores

import (
	"context"
	"time"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

const cacheName = "pickup_stores"

type Provider interface {
	ActivePickupStores(ctx context.Context) ([]models.PickupStore, error)
}

type Static []models.PickupStore

func (s Static) ActivePickupStores(context.Context) ([]models.PickupStore, error) {
	return append([]models.PickupStore(nil), s...), nil
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

func (c *Cached) ActivePickupStores(ctx context.Context) ([]models.PickupStore, error) {
	key := c.store.CacheKey(cacheName)
	var stores []models.PickupStore
	found, err := redis.GetJSON(ctx, c.store, key, &stores)
	if err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "pickup store cache read failed")
	}
	if found {
		return stores, nil
	}

	stores, err = c.next.ActivePickupStores(ctx)
	if err != nil {
		return nil, err
	}
	if err := redis.SetJSON(ctx, c.store, key, stores, c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "pickup store cache write failed")
	}
	return stores, nil
}
