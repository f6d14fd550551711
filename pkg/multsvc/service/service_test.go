package service

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMult(t *testing.T) {
	svc := New(log.NewNopLogger(), discard.NewCounter(), discard.NewHistogram())

	cases := []struct {
		a, b, want float64
	}{
		{2, 3, 6},
		{-2, 2.5, -5},
		{0, 5, 0},
		{0.1, 3, 0.30000000000000004},
	}
	for _, c := range cases {
		rs, err := svc.Mult(context.Background(), c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, rs)
	}
}

func TestMultOverflow(t *testing.T) {
	svc := New(log.NewNopLogger(), discard.NewCounter(), discard.NewHistogram())

	rs, err := svc.Mult(context.Background(), 1e200, 1e200)
	require.NoError(t, err)
	assert.True(t, math.IsInf(rs, 1))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	svc := LoggingMiddleware(log.NewLogfmtLogger(&buf))(&basicMultsvcService{})

	_, err := svc.Mult(context.Background(), 4, 2)
	require.NoError(t, err)

	line := buf.String()
	assert.True(t, strings.Contains(line, "level=info"), line)
	assert.True(t, strings.Contains(line, "method=Mult"), line)
	assert.True(t, strings.Contains(line, "a=4 b=2 rs=8"), line)
}

func TestInstrumentingMiddleware(t *testing.T) {
	labels := []string{"method", "error"}
	countVec := stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: "test",
		Subsystem: "multsvc",
		Name:      "request_count",
	}, labels)
	latencyVec := stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "test",
		Subsystem: "multsvc",
		Name:      "request_latency_seconds",
	}, labels)
	svc := InstrumentingMiddleware(
		kitprometheus.NewCounter(countVec),
		kitprometheus.NewHistogram(latencyVec),
	)(&basicMultsvcService{})

	for i := 0; i < 3; i++ {
		_, err := svc.Mult(context.Background(), float64(i), 2)
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(countVec.WithLabelValues("mult", "false")))
}
