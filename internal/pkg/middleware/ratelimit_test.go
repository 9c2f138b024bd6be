package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"course_checkout/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// unreachableRedis returns a client whose every command fails fast,
// forcing the middleware onto the local token-bucket path
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestOrderRateLimitFallback(t *testing.T) {
	config.GlobalConfig.RateLimit = config.RateLimitConfig{Limit: 2, WindowSeconds: 60, Burst: 2}

	router := gin.New()
	router.POST("/api/orders", OrderRateLimitMiddleware(unreachableRedis()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// burst of 2 passes, the third request in the same window is cut off
	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestIPRateLimiterIsolatesClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)

	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
	assert.False(t, l.GetLimiter("10.0.0.1").Allow())
	// a different IP has its own bucket
	assert.True(t, l.GetLimiter("10.0.0.2").Allow())
}
