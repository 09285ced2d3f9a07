package cart

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

// KeyValue is the redis surface the cart persister needs.
type KeyValue interface {
	redis.KV
	CartKey(cartID string) string
}

// RedisPersister stores one cart under fl:cart:<cartId> with a sliding TTL.
type RedisPersister struct {
	kv  KeyValue
	key string
	ttl time.Duration
}

func NewRedisPersister(kv KeyValue, cartID string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{kv: kv, key: kv.CartKey(cartID), ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	raw, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(raw), nil
}

func (p *RedisPersister) Save(ctx context.Context, data []byte) error {
	return p.kv.Set(ctx, p.key, string(data), p.ttl)
}

// MemoryPersister keeps the serialized cart in process.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryPersister(initial []byte) *MemoryPersister {
	return &MemoryPersister{data: append([]byte(nil), initial...)}
}

func (p *MemoryPersister) Load(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data...), nil
}

func (p *MemoryPersister) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append([]byte(nil), data...)
	return nil
}

// Bytes returns the last saved payload.
func (p *MemoryPersister) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data...)
}

// Opener loads the cart addressed by a client-held cart id.
type Opener interface {
	Open(ctx context.Context, cartID string) (*Store, error)
}

// RedisOpener opens carts persisted in redis.
type RedisOpener struct {
	kv   KeyValue
	ttl  time.Duration
	logg *logger.Logger
}

func NewRedisOpener(kv KeyValue, ttl time.Duration, logg *logger.Logger) *RedisOpener {
	return &RedisOpener{kv: kv, ttl: ttl, logg: logg}
}

func (o *RedisOpener) Open(ctx context.Context, cartID string) (*Store, error) {
	return Open(ctx, NewRedisPersister(o.kv, cartID, o.ttl), o.logg)
}

// MemoryOpener keeps one MemoryPersister per cart id.
type MemoryOpener struct {
	mu    sync.Mutex
	carts map[string]*MemoryPersister
	logg  *logger.Logger
}

func NewMemoryOpener(logg *logger.Logger) *MemoryOpener {
	return &MemoryOpener{carts: make(map[string]*MemoryPersister), logg: logg}
}

func (o *MemoryOpener) Open(ctx context.Context, cartID string) (*Store, error) {
	return Open(ctx, o.Persister(cartID), o.logg)
}

// Persister returns the backing persister for cartID, creating it when missing.
func (o *MemoryOpener) Persister(cartID string) *MemoryPersister {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.carts[cartID]
	if !ok {
		p = NewMemoryPersister(nil)
		o.carts[cartID] = p
	}
	return p
}
