package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(h http.Handler, client string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	if client != "" {
		req.Header.Set("X-Client-ID", client)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWindowLimiter(t *testing.T) {
	l := newWindowLimiter(2, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{t0, t0.Add(10 * time.Second)} {
		if ok, _ := l.allow("a", at); !ok {
			t.Fatalf("request %d: expected to be allowed", i+1)
		}
	}
	ok, wait := l.allow("a", t0.Add(20*time.Second))
	if ok {
		t.Fatal("expected third request in the window to be refused")
	}
	if wait != 40*time.Second {
		t.Errorf("expected 40s until the first request expires, got %v", wait)
	}
	if ok, _ := l.allow("b", t0.Add(20*time.Second)); !ok {
		t.Error("other keys must have their own window")
	}
	// The first request has left the window.
	if ok, _ := l.allow("a", t0.Add(61*time.Second)); !ok {
		t.Error("expected request after the window to be allowed")
	}
}

func TestRateLimitMiddleware_BlocksOverLimit(t *testing.T) {
	handler := RateLimitMiddleware(3)(okHandler())

	for i := 0; i < 3; i++ {
		if w := requestAs(handler, "client-a"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := requestAs(handler, "client-a")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if w := requestAs(handler, "client-b"); w.Code != http.StatusOK {
		t.Errorf("client-b should not be rate-limited, got %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	called := false
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusBadGateway)
	}))

	w := requestAs(handler, "test-client")
	if !called {
		t.Error("inner handler was not called")
	}
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status to pass through, got %d", w.Code)
	}
}

func TestClientIDMiddleware(t *testing.T) {
	var seen string
	handler := ClientIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	if w := requestAs(handler, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without client id, got %d", w.Code)
	}
	if w := requestAs(handler, " planner "); w.Code != http.StatusOK {
		t.Errorf("expected 200 with client id, got %d", w.Code)
	}
	if seen != "planner" {
		t.Errorf("expected client id in context, got %q", seen)
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	if w := requestAs(AdminAuthMiddleware("")(okHandler()), "c"); w.Code != http.StatusOK {
		t.Errorf("expected open access without a token, got %d", w.Code)
	}

	guarded := AdminAuthMiddleware("s3cret")(okHandler())
	for header, want := range map[string]int{
		"":              http.StatusUnauthorized,
		"Bearer wrong":  http.StatusUnauthorized,
		"s3cret":        http.StatusUnauthorized,
		"Bearer s3cret": http.StatusOK,
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		guarded.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("Authorization %q: expected %d, got %d", header, want, w.Code)
		}
	}
}
