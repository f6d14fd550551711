package transports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/sd/lb"
	"github.com/go-kit/kit/tracing/opentracing"
	"github.com/go-kit/kit/tracing/zipkin"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/status"

	"github.com/cage1016/gokitmultsvc/pkg/multsvc/endpoints"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/service"
	"github.com/cage1016/gokitmultsvc/pkg/numfmt"
)

// ResultPrefix starts every successful /mult response body.
const ResultPrefix = "Resultado da multiplicação: "

type errorWrapper struct {
	Error string `json:"error"`
}

func JSONErrorDecoder(r *http.Response) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("expected JSON formatted error, got Content-Type %s", contentType)
	}
	var w errorWrapper
	if err := json.NewDecoder(r.Body).Decode(&w); err != nil {
		return err
	}
	return errors.New(w.Error)
}

// NewHTTPHandler returns a handler that makes a set of endpoints available on
// predefined paths. Unknown paths and methods get the router's 404.
func NewHTTPHandler(endpoints endpoints.Endpoints, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) http.Handler {
	zipkinServer := zipkin.HTTPServerTrace(zipkinTracer)

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(httpEncodeError),
		httptransport.ServerErrorLogger(logger),
		zipkinServer,
	}

	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.NotFoundHandler()
	r.Methods(http.MethodGet, http.MethodHead).Path("/mult").Handler(httptransport.NewServer(
		endpoints.MultEndpoint,
		decodeHTTPMultRequest,
		encodeHTTPMultResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "Mult", logger)))...,
	))
	return r
}

// decodeHTTPMultRequest is a transport/http.DecodeRequestFunc that reads the
// a and b operands from the query string. Absent or unparsable operands
// become 0, so decoding never fails.
func decodeHTTPMultRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	return endpoints.MultRequest{
		A: numfmt.ParseFloatOrDefault(q.Get("a"), 0),
		B: numfmt.ParseFloatOrDefault(q.Get("b"), 0),
	}, nil
}

// encodeHTTPMultResponse is a transport/http.EncodeResponseFunc that writes
// the product as a plain text sentence.
func encodeHTTPMultResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(endpoints.MultResponse)
	for k, vs := range resp.Headers() {
		for _, v := range vs {
			w.Header().Set(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode())
	_, err := io.WriteString(w, ResultPrefix+numfmt.FormatFloat(resp.Rs))
	return err
}

// NewHTTPClient returns a MultsvcService backed by an HTTP server living at the
// remote instance. We expect instance to come from a service discovery system,
// so likely of the form "host:port". We bake-in certain middlewares,
// implementing the client library pattern.
func NewHTTPClient(instance string, otTracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) (service.MultsvcService, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	// A single ratelimiter limits the total outgoing QPS from this client
	// to the remote instance.
	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Millisecond), 100))

	zipkinClient := zipkin.HTTPClientTrace(zipkinTracer)

	// global client middlewares
	options := []httptransport.ClientOption{
		zipkinClient,
	}

	e := endpoints.Endpoints{}

	var multEndpoint endpoint.Endpoint
	{
		multEndpoint = httptransport.NewClient(
			http.MethodGet,
			copyURL(u, "/mult"),
			encodeHTTPMultRequest,
			decodeHTTPMultResponse,
			append(options, httptransport.ClientBefore(opentracing.ContextToHTTP(otTracer, logger)))...,
		).Endpoint()
		multEndpoint = opentracing.TraceClient(otTracer, "Mult")(multEndpoint)
		multEndpoint = zipkin.TraceEndpoint(zipkinTracer, "Mult")(multEndpoint)
		multEndpoint = limiter(multEndpoint)
		multEndpoint = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "Mult",
			Timeout: 30 * time.Second,
		}))(multEndpoint)
		e.MultEndpoint = multEndpoint
	}

	return e, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

// encodeHTTPMultRequest is a transport/http.EncodeRequestFunc that puts the
// operands in the query string. Primarily useful in a client.
func encodeHTTPMultRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(endpoints.MultRequest)
	q := r.URL.Query()
	q.Set("a", strconv.FormatFloat(req.A, 'g', -1, 64))
	q.Set("b", strconv.FormatFloat(req.B, 'g', -1, 64))
	r.URL.RawQuery = q.Encode()
	return nil
}

// decodeHTTPMultResponse is a transport/http.DecodeResponseFunc that parses
// the product out of the text response body. If the response has a non-200
// status code, we will interpret that as an error and attempt to decode the
// specific error message from the response body. Primarily useful in a client.
func decodeHTTPMultResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return nil, JSONErrorDecoder(r)
	}
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	text := string(body)
	if !strings.HasPrefix(text, ResultPrefix) {
		return nil, fmt.Errorf("unexpected response body %q", text)
	}
	rs, err := numfmt.ParseRendered(strings.TrimPrefix(text, ResultPrefix))
	if err != nil {
		return nil, err
	}
	return endpoints.MultResponse{Rs: rs}, nil
}

func httpEncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	if lberr, ok := err.(lb.RetryError); ok && lberr.Final != nil {
		err = lberr.Final
	}

	st, ok := status.FromError(err)
	if ok {
		w.WriteHeader(HTTPStatusFromCode(st.Code()))
		json.NewEncoder(w).Encode(errorWrapper{Error: st.Message()})
		return
	}

	switch err {
	case ratelimit.ErrLimited:
		w.WriteHeader(http.StatusTooManyRequests)
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(errorWrapper{Error: err.Error()})
}
