package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "rt:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"p1"}}`))
	})
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, nil)(countingHandler(&calls))

	body := `{"block_id":"b1","amount":"6.00"}`

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	firstRec := httptest.NewRecorder()
	handler.ServeHTTP(firstRec, first)

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if firstRec.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	secondRec := httptest.NewRecorder()
	handler.ServeHTTP(secondRec, second)

	if calls != 1 {
		t.Fatalf("replay must not reach the handler, calls = %d", calls)
	}
	if secondRec.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", secondRec.Code)
	}
	if secondRec.Body.String() != firstRec.Body.String() {
		t.Fatalf("replay body differs: %s vs %s", secondRec.Body.String(), firstRec.Body.String())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	handler := Idempotency(store, nil)(countingHandler(&calls))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"amount":"6.00"}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"amount":"9.00"}`))
	second.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	if calls != 1 {
		t.Fatalf("conflicting reuse must not reach the handler, calls = %d", calls)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "IDEMPOTENCY_KEY_REUSED") {
		t.Fatalf("body missing idempotency code: %s", rec.Body.String())
	}
}

func TestIdempotencyRequiresHeaderOnLedgerWrites(t *testing.T) {
	handler := Idempotency(newMemoryStore(), nil)(countingHandler(new(int)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// Mounts the middleware inside a chi group the way the real router does.
// Path matching must work even though chi has not resolved the full route
// pattern yet at middleware time.
func newLedgerTestRouter(store *memoryStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, nil))
		r.Post("/payments", countingHandler(calls).ServeHTTP)
		r.Post("/blocks/{blockId}/split", countingHandler(calls).ServeHTTP)
		r.Post("/campaigns", countingHandler(calls).ServeHTTP)
	})
	return r
}

func TestIdempotencyEnforcedInsideMountedGroup(t *testing.T) {
	calls := 0
	router := newLedgerTestRouter(newMemoryStore(), &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler calls = %d, want 0", calls)
	}
}

func TestIdempotencyEnforcedOnSplitRouteInsideMountedGroup(t *testing.T) {
	calls := 0
	router := newLedgerTestRouter(newMemoryStore(), &calls)

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/blocks/5e9d1f54-8a7c-4f7a-9a93-0d6f4cf4a001/split", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler calls = %d, want 0", calls)
	}
}

func TestIdempotencyReplaysInsideMountedGroup(t *testing.T) {
	calls := 0
	router := newLedgerTestRouter(newMemoryStore(), &calls)
	body := `{"block_id":"b1","amount":"6.00"}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d, want 201", i+1, rec.Code)
		}
	}

	if calls != 1 {
		t.Fatalf("replay must not reach the handler, calls = %d", calls)
	}
}

func TestIdempotencySkipsUnruledRoutesInsideMountedGroup(t *testing.T) {
	calls := 0
	router := newLedgerTestRouter(newMemoryStore(), &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if calls != 1 {
		t.Fatalf("unruled route must reach the handler, calls = %d", calls)
	}
}

func TestIdempotencySkipsUnruledRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), nil)(countingHandler(&calls))

	// GETs and plain CRUD POSTs outside the rule table pass straight through.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if calls != 1 {
		t.Fatalf("unruled route must reach the handler, calls = %d", calls)
	}
}
