package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/airies-ai/backend/models"
)

func testRateLimiter(t *testing.T, limit int64) *RateLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRateLimiter(rdb, limit)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := testRateLimiter(t, 2)
	now := time.Date(2026, 8, 1, 10, 0, 15, 0, time.UTC)

	for i := int64(1); i <= 2; i++ {
		allowed, used, _, err := rl.Allow(context.Background(), "ACC_TEST12345678", now)
		if err != nil {
			t.Fatalf("Allow() #%d error: %v", i, err)
		}
		if !allowed || used != i {
			t.Fatalf("Allow() #%d = (%v, %d), expected (true, %d)", i, allowed, used, i)
		}
	}

	allowed, used, resetAt, err := rl.Allow(context.Background(), "ACC_TEST12345678", now)
	if err != nil {
		t.Fatalf("Allow() over limit error: %v", err)
	}
	if allowed || used != 3 {
		t.Errorf("Allow() over limit = (%v, %d), expected (false, 3)", allowed, used)
	}
	if want := time.Date(2026, 8, 1, 10, 1, 0, 0, time.UTC); !resetAt.Equal(want) {
		t.Errorf("Allow() resetAt = %v, expected %v", resetAt, want)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := testRateLimiter(t, 1)
	now := time.Date(2026, 8, 1, 10, 0, 59, 0, time.UTC)

	if allowed, _, _, err := rl.Allow(context.Background(), "ACC_TEST12345678", now); err != nil || !allowed {
		t.Fatalf("Allow() in first window = (%v, %v), expected allowed", allowed, err)
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), "ACC_TEST12345678", now); allowed {
		t.Fatal("Allow() over limit in first window, expected denied")
	}

	// The next minute is a fresh window.
	next := now.Add(time.Second)
	if allowed, used, _, err := rl.Allow(context.Background(), "ACC_TEST12345678", next); err != nil || !allowed || used != 1 {
		t.Errorf("Allow() in next window = (%v, %d, %v), expected (true, 1)", allowed, used, err)
	}
}

func TestRateLimiterIsolatesAccounts(t *testing.T) {
	rl := testRateLimiter(t, 1)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if allowed, _, _, _ := rl.Allow(context.Background(), "ACC_AAAA11112222", now); !allowed {
		t.Fatal("first account should be allowed")
	}
	if allowed, _, _, _ := rl.Allow(context.Background(), "ACC_BBBB11112222", now); !allowed {
		t.Error("second account should have its own budget")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := testRateLimiter(t, 1)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	user := &models.User{ID: "user-1", AccountID: "ACC_TEST12345678"}
	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/v1/agents", nil)
		req = req.WithContext(context.WithValue(req.Context(), "user", user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := request(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, expected 200", rec.Code)
	}

	rec := request()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, expected 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// Unauthenticated requests (webhooks) bypass the limiter entirely.
	req := httptest.NewRequest("POST", "/api/v1/telephony/webhooks/twilio", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("unauthenticated request status = %d, expected 200", recorder.Code)
	}
}
