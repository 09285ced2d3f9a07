// Package deliveryzones serves the active delivery zones offered at checkout.
package deliveryzones

import (
	"context"
	"time"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

const cacheName = "delivery_zones"

// Provider fetches all active delivery zones.
type Provider interface {
	ActiveZones(ctx context.Context) ([]models.DeliveryZone, error)
}

// Static serves a fixed list.
type Static []models.DeliveryZone

func (s Static) ActiveZones(context.Context) ([]models.DeliveryZone, error) {
	return append([]models.DeliveryZone(nil), s...), nil
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

func (c *Cached) ActiveZones(ctx context.Context) ([]models.DeliveryZone, error) {
	key := c.store.CacheKey(cacheName)
	var zones []models.DeliveryZone
	found, err := redis.GetJSON(ctx, c.store, key, &zones)
	if err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "delivery zone cache read failed")
	}
	if found {
		return zones, nil
	}

	zones, err = c.next.ActiveZones(ctx)
	if err != nil {
		return nil, err
	}
	if err := redis.SetJSON(ctx, c.store, key, zones, c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "delivery zone cache write failed")
	}
	return zones, nil
}
