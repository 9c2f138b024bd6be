package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"course_checkout/internal/pkg/config"
	"course_checkout/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// IPRateLimiter 存储每个IP的本地限流器（Redis 不可用时的降级路径）
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  *sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter 创建一个新的IP限流器
// r: 每秒允许的请求数 (QPS)
// b: 桶的大小 (Burst)
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		mu:  &sync.RWMutex{},
		r:   r,
		b:   b,
	}
}

// GetLimiter 获取指定IP的限流器
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}

	return limiter
}

// OrderRateLimitMiddleware 下单接口限流中间件
// 多实例部署时限流状态必须共享，所以用 Redis 固定窗口计数；
// Redis 故障时降级为本地令牌桶，宁可放宽也不拒绝所有下单。
// 限流在任何数据库操作之前短路。
func OrderRateLimitMiddleware(rdb *redis.Client) gin.HandlerFunc {
	cfg := config.GlobalConfig.RateLimit
	window := time.Duration(cfg.WindowSeconds) * time.Second
	local := NewIPRateLimiter(rate.Limit(float64(cfg.Limit)/window.Seconds()), cfg.Burst)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := fmt.Sprintf("ratelimit:orders:%s", ip)

		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// 降级：本地令牌桶
			if !local.GetLimiter(ip).Allow() {
				tooManyRequests(c, cfg.Limit, 0, time.Now().Add(window))
				return
			}
			c.Next()
			return
		}
		// EXPIRE NX 只在键还没有过期时间时生效：既给新窗口布防，
		// 也修复早先 Expire 失败留下的孤儿键，避免某个 IP 被永久限流
		rdb.ExpireNX(c.Request.Context(), key, window)

		ttl, _ := rdb.TTL(c.Request.Context(), key).Result()
		if ttl < 0 {
			ttl = window
		}
		reset := time.Now().Add(ttl)

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(cfg.Limit) {
			tooManyRequests(c, cfg.Limit, 0, reset)
			return
		}

		c.Next()
	}
}

func tooManyRequests(c *gin.Context, limit int, remaining int64, reset time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	response.Error(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "Too many requests")
	c.Abort()
}
