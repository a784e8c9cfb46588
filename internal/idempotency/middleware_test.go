package idempotency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-orders/internal/auth"
)

func newTestHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d,"len":%d}`, n, len(body))
	})
}

func doRequest(h http.Handler, userID int64, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: auth.RoleCustomer}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysCompletedResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(newTestHandler(&calls, http.StatusCreated))

	first := doRequest(h, 1, "abc", `{"x":1}`)
	second := doRequest(h, 1, "abc", `{"x":1}`)

	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls.Load())
	}
	if second.Code != http.StatusCreated {
		t.Errorf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed body %q, got %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get(HeaderReplay) != "true" {
		t.Error("expected replay header on second response")
	}
}

func TestMiddleware_ScopedPerUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(newTestHandler(&calls, http.StatusCreated))

	doRequest(h, 1, "same-key", `{}`)
	doRequest(h, 2, "same-key", `{}`)

	if calls.Load() != 2 {
		t.Fatalf("expected two executions for two users, got %d", calls.Load())
	}
}

func TestMiddleware_WithoutKeyPassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(newTestHandler(&calls, http.StatusCreated))

	doRequest(h, 1, "", `{}`)
	doRequest(h, 1, "", `{}`)

	if calls.Load() != 2 {
		t.Fatalf("expected two executions, got %d", calls.Load())
	}
}

func TestMiddleware_DifferentBodyConflicts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(newTestHandler(&calls, http.StatusCreated))

	doRequest(h, 1, "k", `{"a":1}`)
	rec := doRequest(h, 1, "k", `{"a":2}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestMiddleware_PendingConflicts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore()
	fp := fingerprint([]byte(http.MethodPost), []byte("/orders"), []byte(`{}`))
	if _, err := store.Reserve(context.Background(), "1:k", fp, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var calls atomic.Int32
	h := Middleware(store, logger, time.Hour)(newTestHandler(&calls, http.StatusCreated))
	rec := doRequest(h, 1, "k", `{}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight key, got %d", rec.Code)
	}
	if calls.Load() != 0 {
		t.Fatal("expected handler not to run")
	}
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(newTestHandler(&calls, http.StatusInternalServerError))

	doRequest(h, 1, "k", `{}`)
	doRequest(h, 1, "k", `{}`)

	if calls.Load() != 2 {
		t.Fatalf("expected retry after 5xx to run again, got %d calls", calls.Load())
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if res, _ := store.Reserve(ctx, "k", "fp", time.Minute); res.State != ReservationNew {
		t.Fatalf("expected new reservation, got %v", res.State)
	}
	if res, _ := store.Reserve(ctx, "k", "fp", time.Minute); res.State != ReservationPending {
		t.Fatalf("expected pending reservation, got %v", res.State)
	}

	now = now.Add(2 * time.Minute)
	if res, _ := store.Reserve(ctx, "k", "fp", time.Minute); res.State != ReservationNew {
		t.Fatalf("expected expired key to be reusable, got %v", res.State)
	}
}

// ctxStore fails every call made with a done context, as a network-backed
// store does.
type ctxStore struct {
	*MemoryStore
	reserveTTL time.Duration
}

func (s *ctxStore) Reserve(ctx context.Context, key, fp string, ttl time.Duration) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	s.reserveTTL = ttl
	return s.MemoryStore.Reserve(ctx, key, fp, ttl)
}

func (s *ctxStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Complete(ctx, key, rec, ttl)
}

func (s *ctxStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Release(ctx, key)
}

func TestMiddleware_ClientDisconnectStillStoresResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &ctxStore{MemoryStore: NewMemoryStore()}

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	h := Middleware(store, logger, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":1}`))
		cancel()
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`)).WithContext(ctx)
	req.Header.Set(HeaderKey, "k")
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 1, Role: auth.RoleCustomer}))
	first := httptest.NewRecorder()
	h.ServeHTTP(first, req)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	retry := doRequest(h, 1, "k", `{}`)
	if retry.Code != http.StatusCreated || retry.Header().Get(HeaderReplay) != "true" {
		t.Fatalf("expected replayed 201, got %d %s", retry.Code, retry.Body.String())
	}
	if retry.Body.String() != `{"order_id":1}` {
		t.Errorf("unexpected replayed body %q", retry.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls.Load())
	}
}

func TestMiddleware_PanicReleasesKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls atomic.Int32
	h := Middleware(NewMemoryStore(), logger, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		doRequest(h, 1, "k", `{}`)
	}()

	rec := doRequest(h, 1, "k", `{}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected retry after panic to run, got %d", rec.Code)
	}
	if calls.Load() != 2 {
		t.Errorf("expected two executions, got %d", calls.Load())
	}
}

func TestMiddleware_PendingReservationIsShortLived(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &ctxStore{MemoryStore: NewMemoryStore()}
	var calls atomic.Int32
	h := Middleware(store, logger, 24*time.Hour)(newTestHandler(&calls, http.StatusCreated))

	doRequest(h, 1, "k", `{}`)

	if store.reserveTTL != PendingTTL {
		t.Errorf("expected pending reservation ttl %v, got %v", PendingTTL, store.reserveTTL)
	}
	e := store.records["1:k"]
	if e.rec.Status != StatusCompleted {
		t.Fatalf("expected completed record, got %q", e.rec.Status)
	}
	if remaining := time.Until(e.expiresAt); remaining < 23*time.Hour {
		t.Errorf("expected completed record to keep the full ttl, %v left", remaining)
	}
}
