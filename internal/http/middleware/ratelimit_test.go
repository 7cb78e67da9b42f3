package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var byIP, byRoute string
	r.GET("/run/status", func(c *gin.Context) {
		byIP, byRoute = KeyByIP()(c), KeyByIPAndRoute()(c)
	})
	req := httptest.NewRequest(http.MethodGet, "/run/status?domain=a.com", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if byIP != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP = %q", byIP)
	}
	if byRoute != "ip:203.0.113.9|/run/status" {
		t.Fatalf("KeyByIPAndRoute = %q", byRoute)
	}
}

func TestRateLimiter_429AfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2, KeyByIP())
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/run/autocf", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/run/autocf", nil)
		req.RemoteAddr = net.JoinHostPort(ip, "1")
		r.ServeHTTP(w, req)
		return w
	}
	for i := 0; i < 2; i++ {
		if w := do("198.51.100.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := do("198.51.100.1")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("third request = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "too_many_requests" || body["type"] != "error" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}
	if w := do("198.51.100.2"); w.Code != http.StatusOK {
		t.Fatalf("other client = %d", w.Code)
	}
}

func TestRateLimiter_BurstCoercedAndSweep(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d", rl.burst)
	}

	now := time.Now()
	stale := rl.limiter("stale", now.Add(-time.Hour))
	rl.lookups = 4999
	if got := rl.limiter("stale", now); got == stale {
		t.Fatal("idle bucket should be swept and recreated")
	}
	if len(rl.visitors) != 1 {
		t.Fatalf("visitors = %d", len(rl.visitors))
	}
}
