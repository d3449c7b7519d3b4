package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per client IP in a shared Redis store so the
// budget holds across horizontally scaled instances. A fixed window is
// enough here; precision is not the point, fairness across replicas is.
type Limiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

func New(client *redis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{Client: client, Limit: limit, Window: window}
}

// Middleware rejects with 429 once the caller exhausts its window
// budget. Store errors fail open: a broken limiter must not take the
// storefront down with it.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil || l.Client == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			key := fmt.Sprintf("ratelimit:%s", c.RealIP())

			count, err := l.Client.Incr(ctx, key).Result()
			if err != nil {
				logging.FromContext(ctx).Warn("rate limit store unavailable", "error", err)
				return next(c)
			}
			if count == 1 {
				if err := l.Client.Expire(ctx, key, l.Window).Err(); err != nil {
					logging.FromContext(ctx).Warn("rate limit expire failed", "error", err)
				}
			}

			if count > int64(l.Limit) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
