package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/api/responses"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	inFlightTTL           = 30 * time.Second
	idempotencyHeader     = "Idempotency-Key"
)

type idempotencyRule struct {
	method   string
	segments []string
}

// Order decisions and stock adjustments are replay-safe. "*" matches one
// non-empty path segment. Matching runs on the raw path because chi has
// not resolved the route pattern at group-middleware time.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, segments: []string{"api", "v1", "orders", "*", "accept"}},
	{method: http.MethodPost, segments: []string{"api", "v1", "orders", "*", "reject"}},
	{method: http.MethodPost, segments: []string{"api", "v1", "materials", "*", "adjust"}},
}

type idempotencyStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	IdempotencyKey(scope, id string) string
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// on the routes in idempotencyRules. A key is scoped to the caller, method
// and path. Reusing it with a different body, or while the first request
// is still running, is a conflict. 5xx responses are not stored so the
// client can retry.
func Idempotency(store idempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !requiresIdempotency(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				fail(pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := hashBody(body)

			key := store.IdempotencyKey(requestScope(r), clientKey)
			var stored storedResponse
			found, err := store.GetJSON(ctx, key, &stored)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				if stored.RequestHash != hash {
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				stored.replay(w)
				return
			}

			lockKey, owner := key+":inflight", uuid.NewString()
			claimed, err := store.SetNX(ctx, lockKey, owner, inFlightTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				fail(pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is in progress"))
				return
			}
			defer func() {
				if _, err := store.ReleaseIfOwner(context.WithoutCancel(ctx), lockKey, owner); err != nil && logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "release idempotency claim failed")
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			record := storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			}
			if err := store.SetJSON(context.WithoutCancel(ctx), key, record, ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, strings.TrimSuffix(r.URL.Path, "/")}, "|")
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func requiresIdempotency(method, path string) bool {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, rule := range idempotencyRules {
		if rule.method == method && matchSegments(rule.segments, parts) {
			return true
		}
	}
	return false
}

func matchSegments(rule, parts []string) bool {
	if len(rule) != len(parts) {
		return false
	}
	for i, seg := range rule {
		switch {
		case seg == "*" && parts[i] == "":
			return false
		case seg != "*" && seg != parts[i]:
			return false
		}
	}
	return true
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
