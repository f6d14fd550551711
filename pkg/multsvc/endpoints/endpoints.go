package endpoints

import (
	"context"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/tracing/opentracing"
	"github.com/go-kit/kit/tracing/zipkin"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/sony/gobreaker"

	"github.com/cage1016/gokitmultsvc/pkg/multsvc/service"
)

// Endpoints collects all of the endpoints that compose the multsvc service. It's
// meant to be used as a helper struct, to collect all of the endpoints into a
// single parameter.
type Endpoints struct {
	MultEndpoint endpoint.Endpoint
}

// New return a new instance of the endpoint that wraps the provided service.
// The limiter is shared by every endpoint in the set.
func New(svc service.MultsvcService, logger log.Logger, limiter ratelimit.Allower, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer) (ep Endpoints) {
	var multEndpoint endpoint.Endpoint
	{
		method := "mult"
		multEndpoint = MakeMultEndpoint(svc)
		multEndpoint = ratelimit.NewErroringLimiter(limiter)(multEndpoint)
		multEndpoint = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: method}))(multEndpoint)
		multEndpoint = opentracing.TraceServer(otTracer, method)(multEndpoint)
		multEndpoint = zipkin.TraceEndpoint(zipkinTracer, method)(multEndpoint)
		multEndpoint = LoggingMiddleware(log.With(logger, "method", method))(multEndpoint)
		ep.MultEndpoint = multEndpoint
	}

	return ep
}

// MakeMultEndpoint returns an endpoint that invokes Mult on the service.
// Primarily useful in a server.
func MakeMultEndpoint(svc service.MultsvcService) (ep endpoint.Endpoint) {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(MultRequest)
		if err := req.validate(); err != nil {
			return MultResponse{}, err
		}
		rs, err := svc.Mult(ctx, req.A, req.B)
		return MultResponse{Rs: rs, Err: err}, err
	}
}

// Mult implements the service interface, so Endpoints may be used as a service.
// This is primarily useful in the context of a client library.
func (e Endpoints) Mult(ctx context.Context, a float64, b float64) (rs float64, err error) {
	resp, err := e.MultEndpoint(ctx, MultRequest{A: a, B: b})
	if err != nil {
		return
	}
	response := resp.(MultResponse)
	return response.Rs, response.Err
}
