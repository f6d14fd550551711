package service

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type loggingMiddleware struct {
	logger log.Logger
	next   MultsvcService
}

// LoggingMiddleware takes a logger as a dependency
// and returns a ServiceMiddleware.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next MultsvcService) MultsvcService {
		return loggingMiddleware{level.Info(logger), next}
	}
}

func (lm loggingMiddleware) Mult(ctx context.Context, a float64, b float64) (rs float64, err error) {
	defer func(begin time.Time) {
		lm.logger.Log("method", "Mult", "a", a, "b", b, "rs", rs, "err", err, "took", time.Since(begin))
	}(time.Now())

	return lm.next.Mult(ctx, a, b)
}
