package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/redis/redistest"
)

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"checkout cart", http.MethodPost, "/api/v1/checkout", criticalIdempotencyTTL, true},
		{"checkout product", http.MethodPost, "/api/v1/checkout/products/42", criticalIdempotencyTTL, true},
		{"order pay", http.MethodPost, "/api/v1/orders/456/pay", criticalIdempotencyTTL, true},
		{"wallet pay", http.MethodPost, "/api/v1/wallet/pay", criticalIdempotencyTTL, true},
		{"wallet top-up", http.MethodPost, "/api/v1/wallet/top-up", criticalIdempotencyTTL, true},
		{"wallet request", http.MethodPost, "/api/v1/wallet/request", defaultIdempotencyTTL, true},
		{"cart items", http.MethodPost, "/api/v1/cart/items", defaultIdempotencyTTL, true},
		{"vendor products", http.MethodPost, "/api/v1/vendor/products", defaultIdempotencyTTL, true},
		{"order cancel", http.MethodPost, "/api/v1/orders/456/cancel", 0, false},
		{"get checkout", http.MethodGet, "/api/v1/checkout", 0, false},
		{"login", http.MethodPost, "/api/v1/auth/login", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func checkoutRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store, _ := redistest.NewClient()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, checkoutRequest(`{"payment_method":"wallet"}`, ""))
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice without a key, ran %d", calls)
	}
}

func TestIdempotencyMiddlewareRejectsLongKey(t *testing.T) {
	store, _ := redistest.NewClient()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, checkoutRequest(`{}`, strings.Repeat("k", 129)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store, mem := redistest.NewClient()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, checkoutRequest(`{"payment_method":"wallet"}`, "abc"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	key := store.IdempotencyKey("user-1|POST|/api/v1/checkout", "abc")
	if got := mem.TTL(key); got != criticalIdempotencyTTL {
		t.Fatalf("expected ttl %v got %v", criticalIdempotencyTTL, got)
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, checkoutRequest(`{"payment_method":"wallet"}`, "abc"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareScopesKeysPerUser(t *testing.T) {
	store, _ := redistest.NewClient()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "same"))

	other := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	other.Header.Set("Idempotency-Key", "same")
	mw(handler).ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("expected each user to execute once, got %d calls", calls)
	}
}

func TestIdempotencyMiddlewareSkipsFailedResponses(t *testing.T) {
	store, _ := redistest.NewClient()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	mw(handler).ServeHTTP(first, checkoutRequest(`{}`, "retry"))
	if first.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	mw(handler).ServeHTTP(second, checkoutRequest(`{}`, "retry"))
	if second.Code != http.StatusCreated {
		t.Fatalf("expected retry to execute and return 201, got %d", second.Code)
	}
	if calls != 2 {
		t.Fatalf("expected two executions got %d", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store, _ := redistest.NewClient()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{"foo":"bar"}`, "xyz"))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, checkoutRequest(`{"foo":"diff"}`, "xyz"))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareIgnoresOtherRoutes(t *testing.T) {
	store, mem := redistest.NewClient()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "login")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if mem.Has(store.IdempotencyKey("|POST|/api/v1/auth/login", "login")) {
		t.Fatal("login responses must not be stored")
	}
}
