package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
)

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           MultsvcService
}

// InstrumentingMiddleware returns a service middleware that counts requests
// and observes their latency in seconds.
func InstrumentingMiddleware(requestCount metrics.Counter, requestLatency metrics.Histogram) Middleware {
	return func(next MultsvcService) MultsvcService {
		return instrumentingMiddleware{
			requestCount:   requestCount,
			requestLatency: requestLatency,
			next:           next,
		}
	}
}

func (im instrumentingMiddleware) Mult(ctx context.Context, a float64, b float64) (rs float64, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "mult", "error", fmt.Sprint(err != nil)}
		im.requestCount.With(lvs...).Add(1)
		im.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return im.next.Mult(ctx, a, b)
}
