package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/florist-backend/api/responses"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/florist-backend/pkg/redis"
)

// IdempotencyKeyHeader names the client-chosen key for replay-safe writes.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	defaultReplayTTL = 24 * time.Hour
	inFlightTTL      = 30 * time.Second
	maxKeyLength     = 128
)

// ReplayStore is the redis surface of the replay middleware. Set overwrites the
// in-flight marker with the finished response in one write.
type ReplayStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// IdempotencyPolicy scopes stored responses for one group of routes.
type IdempotencyPolicy struct {
	Scope string
	TTL   time.Duration
}

func (p IdempotencyPolicy) ttl() time.Duration {
	if p.TTL <= 0 {
		return defaultReplayTTL
	}
	return p.TTL
}

type storedResponse struct {
	InFlight    bool   `json:"inFlight,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency requires an Idempotency-Key on the wrapped routes and replays the
// first non-5xx response for repeats of the same key and body. A repeat that
// arrives while the first request is still running is refused with 409. A nil
// store disables the check.
func Idempotency(store ReplayStore, policy IdempotencyPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxKeyLength {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]string{"header": IdempotencyKeyHeader}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r, body)
			key := store.IdempotencyKey(policy.Scope, callerScope(r)+":"+clientKey)

			previous, found, err := loadStoredResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key"))
				return
			}
			if found {
				replayOrRefuse(ctx, logg, w, previous, fingerprint)
				return
			}

			claimed, err := claimKey(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// 5xx responses are not stored so the client can retry with the same key.
			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logIdempotencyError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			record := storedResponse{
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logIdempotencyError(ctx, logg, "encode idempotency record", err)
				if delErr := store.Del(ctx, key); delErr != nil {
					logIdempotencyError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}
			if err := store.Set(ctx, key, string(payload), policy.ttl()); err != nil {
				logIdempotencyError(ctx, logg, "store idempotency record", err)
			}
		})
	}
}

func loadStoredResponse(ctx context.Context, store ReplayStore, key string) (storedResponse, bool, error) {
	var record storedResponse
	raw, err := store.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNil(err) {
			return record, false, nil
		}
		return record, false, err
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return record, false, err
	}
	return record, true, nil
}

func claimKey(ctx context.Context, store ReplayStore, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

func replayOrRefuse(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, record storedResponse, fingerprint string) {
	switch {
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case record.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// callerScope separates keys of different callers: admin subject when
// authenticated, otherwise the storefront cart id.
func callerScope(r *http.Request) string {
	if subject := SubjectFromContext(r.Context()); subject != "" {
		return "sub=" + subject
	}
	return "cart=" + strings.TrimSpace(r.Header.Get(CartIDHeader))
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logIdempotencyError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
