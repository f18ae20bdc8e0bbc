package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sokohub/sokohub-backend/api/responses"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	pkgredis "github.com/sokohub/sokohub-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// idempotentRoute matches POST paths by prefix and optional suffix. A route
// with exact set must match the whole path.
type idempotentRoute struct {
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

func (r idempotentRoute) matches(path string) bool {
	if r.exact {
		return path == r.prefix
	}
	return strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

var idempotentRoutes = []idempotentRoute{
	{prefix: "/api/v1/vendor/products", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/cart/items", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/wallet/request", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/wallet/pay", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/wallet/top-up", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/checkout", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/checkout/products/", ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/orders/", suffix: "/pay", ttl: criticalIdempotencyTTL},
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(path) {
			return route.ttl, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// Idempotency replays the stored response when a client repeats an
// Idempotency-Key on one of idempotentRoutes. The key is scoped to the caller,
// method and path; reusing it with another body is a conflict. Only 2xx
// responses are kept so failed attempts can be retried.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := g.serve(w, r, next, clientKey, ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, clientKey string, ttl time.Duration) error {
	if len(clientKey) > maxIdempotencyKeyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	ctx := r.Context()
	hash := requestHash(body)
	key := g.store.IdempotencyKey(strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

	prior, found, err := g.lookup(r, key)
	if err != nil {
		return err
	}
	if found {
		if prior.RequestHash != hash {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		prior.replay(w)
		return nil
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if status < 200 || status >= 300 {
		return nil
	}
	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
		RequestHash: hash,
	})
	if err == nil {
		_, err = g.store.SetNX(ctx, key, string(payload), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(g.logg.WithField(ctx, "idempotency_key", key), "persist idempotency record", err)
	}
	return nil
}

func (g *idempotencyGuard) lookup(r *http.Request, key string) (storedResponse, bool, error) {
	var prior storedResponse
	raw, err := g.store.Get(r.Context(), key)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && raw == ""):
		return prior, false, nil
	case err != nil:
		return prior, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return prior, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return prior, true, nil
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}
