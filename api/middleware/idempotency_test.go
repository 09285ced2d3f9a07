package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
)

type memoryIdempotencyStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	deletes int
	// onSet runs before a Set is applied.
	onSet func(key string)
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.onSet != nil {
		m.onSet(key)
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	m.deletes++
	for _, k := range keys {
		delete(m.values, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func submitRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/s-1/submit", strings.NewReader(body))
	req.Header.Set(CartIDHeader, "cart-1")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestIdempotencyRequiresKey(t *testing.T) {
	called := false
	h := Idempotency(newMemoryIdempotencyStore(), IdempotencyPolicy{Scope: "checkout_submit"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest("", `{}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if called {
		t.Fatal("handler must not run without a key")
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	h := Idempotency(store, IdempotencyPolicy{Scope: "checkout_submit", TTL: time.Hour}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"orderId":"o-1"}}`))
		}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, submitRequest("k-1", `{}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, submitRequest("k-1", `{}`))

	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replayed responses should be marked")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatal("content type should be replayed")
	}
	for key, ttl := range store.ttls {
		if ttl != time.Hour {
			t.Fatalf("record %s stored with ttl %v", key, ttl)
		}
	}
}

func TestIdempotencyServerErrorsStayRetryable(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryIdempotencyStore(), IdempotencyPolicy{Scope: "checkout_submit"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusCreated)
		}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), submitRequest("retry", `{}`))
	}
	if calls != 2 {
		t.Fatalf("expected retry to reach the handler, ran %d times", calls)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	h := Idempotency(newMemoryIdempotencyStore(), IdempotencyPolicy{Scope: "admin_orders"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	h.ServeHTTP(httptest.NewRecorder(), submitRequest("k-2", `{"status":"processing"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest("k-2", `{"status":"cancelled"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestIdempotencyRefusesWhileInFlight(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var nested *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, IdempotencyPolicy{Scope: "checkout_submit"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if nested == nil {
				nested = httptest.NewRecorder()
				h.ServeHTTP(nested, submitRequest("busy", `{}`))
			}
			w.WriteHeader(http.StatusCreated)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, submitRequest("busy", `{}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("first request should complete, got %d", rec.Code)
	}
	if nested.Code != http.StatusConflict {
		t.Fatalf("concurrent duplicate should be refused, got %d", nested.Code)
	}
}

func TestIdempotencyRecordReplacesMarkerWithoutGap(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	var h http.Handler
	var duplicate *httptest.ResponseRecorder
	store.onSet = func(string) {
		// a duplicate arriving while the record is written still sees the marker
		duplicate = httptest.NewRecorder()
		h.ServeHTTP(duplicate, submitRequest("gap", `{}`))
	}
	h = Idempotency(store, IdempotencyPolicy{Scope: "checkout_submit"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}))

	h.ServeHTTP(httptest.NewRecorder(), submitRequest("gap", `{}`))

	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if duplicate == nil || duplicate.Code != http.StatusConflict {
		t.Fatalf("duplicate during the write should be refused, got %+v", duplicate)
	}
	if store.deletes != 0 {
		t.Fatalf("a stored response must not release the key first, saw %d deletes", store.deletes)
	}

	store.onSet = nil
	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, submitRequest("gap", `{}`))
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay of the first response, got %d", replay.Code)
	}
}

func TestIdempotencyKeysAreScopedPerCart(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryIdempotencyStore(), IdempotencyPolicy{Scope: "checkout_submit"}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}))

	h.ServeHTTP(httptest.NewRecorder(), submitRequest("same", `{}`))
	other := submitRequest("same", `{}`)
	other.Header.Set(CartIDHeader, "cart-2")
	h.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("different carts must not share keys, handler ran %d times", calls)
	}
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	called := false
	h := Idempotency(nil, IdempotencyPolicy{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), submitRequest("", `{}`))
	if !called {
		t.Fatal("nil store should disable the check")
	}
}
