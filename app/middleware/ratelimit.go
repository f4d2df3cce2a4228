package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-course-checkout/app/types"
)

type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RateLimiter admits one request per buyer and route per window.
type RateLimiter struct {
	client  setNXClient
	window  time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewRateLimiter(client setNXClient, prefix string, window time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		client:  client,
		window:  window,
		prefix:  prefix,
		metrics: m,
		logger:  factory.NewModuleLogger("rate-limiter"),
	}
}

// PerBuyer must run after JWTAuth. Redis errors let the request through.
func (r *RateLimiter) PerBuyer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if r.window <= 0 {
				return next(ctx)
			}
			buyer, ok := BuyerFromContext(ctx)
			if !ok {
				return next(ctx)
			}

			key := fmt.Sprintf("%s%s:%d", r.prefix, ctx.Path(), buyer.ID)
			admitted, err := r.client.SetNX(ctx.Request().Context(), key, 1, r.window).Result()
			if err != nil {
				factory.LoggerWithContext(r.logger, ctx).WithError(err).Warn("Rate limiter unavailable")
				return next(ctx)
			}
			if !admitted {
				r.metrics.ObserveRateLimited()
				ctx.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(r.window.Seconds())))
				return ctx.JSON(http.StatusTooManyRequests, &types.ErrorResponse{Error: "too many requests"})
			}
			return next(ctx)
		}
	}
}
