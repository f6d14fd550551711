package service

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
)

// Middleware describes a service (as opposed to endpoint) middleware.
type Middleware func(MultsvcService) MultsvcService

// MultsvcService describes a service that multiplies numbers.
type MultsvcService interface {
	Mult(ctx context.Context, a float64, b float64) (rs float64, err error)
}

// the concrete implementation of service interface
type basicMultsvcService struct {
	logger log.Logger
}

// New return a new instance of the service, wrapped with logging and
// instrumenting middlewares.
func New(logger log.Logger, requestCount metrics.Counter, requestLatency metrics.Histogram) (s MultsvcService) {
	var svc MultsvcService
	{
		svc = &basicMultsvcService{logger: logger}
		svc = LoggingMiddleware(logger)(svc)
		svc = InstrumentingMiddleware(requestCount, requestLatency)(svc)
	}
	return svc
}

// Mult returns the IEEE 754 product of a and b. It never fails.
func (mu *basicMultsvcService) Mult(_ context.Context, a float64, b float64) (rs float64, err error) {
	return a * b, nil
}
