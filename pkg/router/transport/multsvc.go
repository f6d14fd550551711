package transport

import (
	"io"
	"net/http"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	"github.com/go-kit/kit/sd/lb"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"

	"github.com/cage1016/gokitmultsvc/pkg/multsvc/endpoints"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/service"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/transports"
)

// MakeMultsvcHandler returns the multsvc HTTP API backed by the instances the
// instancer yields. Calls are balanced round robin and retried up to
// retryMax times within retryTimeout.
func MakeMultsvcHandler(instancer sd.Instancer, retryMax int, retryTimeout time.Duration, tracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) http.Handler {
	factory := multsvcFactory(endpoints.MakeMultEndpoint, tracer, zipkinTracer, logger)
	endpointer := sd.NewEndpointer(instancer, factory, logger)
	balancer := lb.NewRoundRobin(endpointer)

	var eps = endpoints.Endpoints{}
	eps.MultEndpoint = lb.Retry(retryMax, retryTimeout, balancer)

	return transports.NewHTTPHandler(eps, tracer, zipkinTracer, logger)
}

func multsvcFactory(
	makeEndpoint func(service.MultsvcService) endpoint.Endpoint,
	tracer stdopentracing.Tracer,
	zipkinTracer *stdzipkin.Tracer,
	logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		svc, err := transports.NewHTTPClient(instance, tracer, zipkinTracer, logger)
		if err != nil {
			return nil, nil, err
		}
		return makeEndpoint(svc), nil, nil
	}
}
