package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
)

func newLimiter(t *testing.T, limit int, d time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	l := New(limit, d)
	t.Cleanup(l.Stop)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_WindowResets(t *testing.T) {
	l, now := newLimiter(t, 2, time.Minute)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are independent")
	}
	if got := l.Remaining("a"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}

	*now = now.Add(time.Minute + time.Second)
	if !l.Allow("a") {
		t.Fatal("window should have reset")
	}
	if got := l.Remaining("a"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestReset(t *testing.T) {
	l, _ := newLimiter(t, 1, time.Minute)
	l.Allow("a")
	l.Reset("a")
	if !l.Allow("a") {
		t.Fatal("Reset should clear the window")
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newLimiter(t, 1, time.Minute)
	h := l.Middleware(ByIP, http.MethodPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := call("POST"); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec := call("POST")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec := call("GET"); rec.Code != http.StatusNoContent {
		t.Fatalf("GET is not counted, got %d", rec.Code)
	}
}

func TestByUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := ByUser(req); got != "ip:10.0.0.1" {
		t.Errorf("anonymous key = %q", got)
	}
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "alice"})
	if got := ByUser(req); got != "user:alice" {
		t.Errorf("user key = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded", "1.2.3.4, 10.0.0.1", "", "10.0.0.1:1", "1.2.3.4"},
		{"real ip", "", "5.6.7.8", "10.0.0.1:1", "5.6.7.8"},
		{"remote with port", "", "", "9.9.9.9:1234", "9.9.9.9"},
		{"remote without port", "", "", "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
