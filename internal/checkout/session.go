package checkout

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

var ErrSessionNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")

// Notice is a non-blocking message shown alongside the checkout.
type Notice struct {
	Code   string `json:"code"`
	Source string `json:"source"`
}

const NoticeReferenceUnavailable = "reference_data_unavailable"

// Session is a wizard state bound to a cart, as stored between requests.
type Session struct {
	State
	CartID    string    `json:"cartId"`
	Notices   []Notice  `json:"notices,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionStore keeps checkout sessions between requests.
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

// SessionKV is the redis surface used by RedisSessionStore.
type SessionKV interface {
	redis.KV
	CheckoutSessionKey(sessionID string) string
}

// RedisSessionStore stores sessions as JSON under fl:checkout:<id>; each save refreshes the TTL.
type RedisSessionStore struct {
	kv  SessionKV
	ttl time.Duration
}

func NewRedisSessionStore(kv SessionKV, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{kv: kv, ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	var session Session
	found, err := redis.GetJSON(ctx, s.kv, s.kv.CheckoutSessionKey(id), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	return redis.SetJSON(ctx, s.kv, s.kv.CheckoutSessionKey(session.SessionID), session, s.ttl)
}

// MemorySessionStore keeps sessions in process.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = *session
	return nil
}
