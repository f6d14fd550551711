package transport

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/sd"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/openzipkin/zipkin-go/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/cage1016/gokitmultsvc/pkg/multsvc/endpoints"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/service"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/transports"
)

func newZipkinTracer(t *testing.T) *stdzipkin.Tracer {
	t.Helper()
	tracer, err := stdzipkin.NewTracer(reporter.NewNoopReporter(), stdzipkin.WithNoopTracer(true))
	require.NoError(t, err)
	return tracer
}

func newMultsvc(t *testing.T) *httptest.Server {
	t.Helper()
	zipkinTracer := newZipkinTracer(t)
	svc := service.New(log.NewNopLogger(), discard.NewCounter(), discard.NewHistogram())
	eps := endpoints.New(svc, log.NewNopLogger(), rate.NewLimiter(rate.Inf, 1), stdopentracing.NoopTracer{}, zipkinTracer)
	return httptest.NewServer(transports.NewHTTPHandler(eps, stdopentracing.NoopTracer{}, zipkinTracer, log.NewNopLogger()))
}

func newGateway(t *testing.T, instances ...string) *httptest.Server {
	t.Helper()
	tr := NewHandlerBuilder()
	tr.AddHandler("multsvc", MakeMultsvcHandler(
		sd.FixedInstancer(instances),
		3,
		time.Second,
		stdopentracing.NoopTracer{},
		newZipkinTracer(t),
		log.NewNopLogger(),
	))
	return httptest.NewServer(tr)
}

// getEventually retries until the endpointer has picked up its instances.
func getEventually(t *testing.T, url string) (int, string) {
	t.Helper()
	var (
		code int
		body []byte
	)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		code = resp.StatusCode
		body, err = ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		if code == http.StatusOK {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return code, string(body)
}

func TestGatewayRoot(t *testing.T) {
	gw := newGateway(t)
	defer gw.Close()

	code, body := getEventually(t, gw.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	resp, err := http.Get(gw.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayForwardsMult(t *testing.T) {
	upstream := newMultsvc(t)
	defer upstream.Close()

	gw := newGateway(t, upstream.URL)
	defer gw.Close()

	code, body := getEventually(t, gw.URL+"/multsvc/mult?a=2&b=3")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Resultado da multiplicação: 6", body)

	code, body = getEventually(t, gw.URL+"/multsvc/mult?a=foo&b=3")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Resultado da multiplicação: 0", body)
}

func TestGatewaySkipsDeadInstance(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	upstream := newMultsvc(t)
	defer upstream.Close()

	gw := newGateway(t, deadURL, upstream.URL)
	defer gw.Close()

	for i := 0; i < 4; i++ {
		code, body := getEventually(t, gw.URL+"/multsvc/mult?a=-2&b=2.5")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Resultado da multiplicação: -5", body)
	}
}

func TestGatewayNoInstances(t *testing.T) {
	gw := newGateway(t)
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/multsvc/mult?a=1&b=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
