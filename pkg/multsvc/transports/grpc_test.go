package transports

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestGRPCHealthServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server, hs := NewGRPCHealthServer("multsvc", stdopentracing.NoopTracer{}, newZipkinTracer(t))
	go server.Serve(lis)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, lis.Addr().String(), grpc.WithInsecure(), grpc.WithBlock())
	require.NoError(t, err)
	defer conn.Close()

	client := healthgrpc.NewHealthClient(conn)
	resp, err := client.Check(ctx, &healthgrpc.HealthCheckRequest{Service: "multsvc"})
	require.NoError(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_SERVING, resp.Status)

	hs.SetServingStatus("multsvc", healthgrpc.HealthCheckResponse_NOT_SERVING)
	resp, err = client.Check(ctx, &healthgrpc.HealthCheckRequest{Service: "multsvc"})
	require.NoError(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_NOT_SERVING, resp.Status)

	_, err = client.Check(ctx, &healthgrpc.HealthCheckRequest{Service: "addsvc"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHTTPStatusFromCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatusFromCode(codes.OK))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(codes.ResourceExhausted))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatusFromCode(codes.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(codes.Code(99)))
}
