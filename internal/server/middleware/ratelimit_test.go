package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, setupTestLogger())
	defer rl.Stop()

	// Первые 3 запроса проходят
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d should be allowed", i+1)
	}

	// Четвертый блокируется
	assert.False(t, rl.Allow("1.2.3.4"))

	// Другой ключ не затронут
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond, setupTestLogger())
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))

	// После окна токены пополняются
	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestRateLimitByPath(t *testing.T) {
	limits := []PathRateLimit{
		{Path: "/api/v1/users/login", Rate: 2, Window: time.Minute},
	}

	mw := RateLimitByPath(limits, 100, time.Minute, setupTestLogger())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "1.2.3.4:5678"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Кастомный лимит на login: 2 запроса, третий отклоняется
	assert.Equal(t, http.StatusOK, doRequest("/api/v1/users/login"))
	assert.Equal(t, http.StatusOK, doRequest("/api/v1/users/login"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest("/api/v1/users/login"))

	// Остальные пути под дефолтным лимитом
	assert.Equal(t, http.StatusOK, doRequest("/api/v1/users/me"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xRealIP    string
		remoteAddr string
		want       string
	}{
		{
			name:       "X-Forwarded-For single",
			xff:        "10.0.0.1",
			remoteAddr: "1.2.3.4:5678",
			want:       "10.0.0.1",
		},
		{
			name:       "X-Forwarded-For list takes first",
			xff:        "10.0.0.1,10.0.0.2",
			remoteAddr: "1.2.3.4:5678",
			want:       "10.0.0.1",
		},
		{
			name:       "X-Real-IP",
			xRealIP:    "10.0.0.3",
			remoteAddr: "1.2.3.4:5678",
			want:       "10.0.0.3",
		},
		{
			name:       "RemoteAddr fallback",
			remoteAddr: "1.2.3.4:5678",
			want:       "1.2.3.4:5678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
