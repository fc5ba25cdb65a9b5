package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/tflitehelper/internal/logger"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID assigns every request an ID, taken from the incoming header when
// present, and stores it as the logger trace ID.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.New().String()
			}
			c.Set(requestIDKey, id)
			c.Response().Header().Set(RequestIDHeader, id)

			ctx := logger.WithTraceID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func getRequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// requestLogger logs each request through the module logger.
func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			log.WithContext(c.Request().Context()).Info("request", fields...)
			return nil
		},
	})
}

// metricsMiddleware records request counts and latency per route.
func (s *Server) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			s.metrics.HTTP.RecordRequest(c.Request().Method, path, c.Response().Status, time.Since(start).Seconds())
			return nil
		}
	}
}

// rateLimiter limits requests per client IP with a token bucket.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.RateLimit),
		Burst:     s.config.RateBurst,
		ExpiresIn: rateLimiterExpiry,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errorResponse(c, http.StatusForbidden, "cannot identify client", err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if s.metrics != nil {
				s.metrics.HTTP.RecordRateLimited()
			}
			s.log.Debug("rate limit exceeded", logger.String("client", identifier))
			return errorResponse(c, http.StatusTooManyRequests, "rate limit exceeded", err)
		},
	})
}
