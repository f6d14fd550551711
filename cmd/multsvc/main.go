package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	consulapi "github.com/hashicorp/consul/api"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cage1016/gokitmultsvc/pkg/multsvc/endpoints"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/service"
	"github.com/cage1016/gokitmultsvc/pkg/multsvc/transports"
)

const (
	defZipkinV2URL string = ""
	defNameSpace   string = "gokitmultsvc"
	defServiceName string = "multsvc"
	defLogLevel    string = "info"
	defHTTPHost    string = "0.0.0.0"
	defServiceHost string = "localhost"
	defHTTPPort    string = "3000"
	defGRPCPort    string = ""
	defDebugPort   string = ""
	defRateLimit   string = "1000"
	defConsulHost  string = ""
	defConsulPort  string = "8500"
	envZipkinV2URL string = "QS_ZIPKIN_V2_URL"
	envNameSpace   string = "QS_MULTSVC_NAMESPACE"
	envServiceName string = "QS_MULTSVC_SERVICE_NAME"
	envLogLevel    string = "QS_MULTSVC_LOG_LEVEL"
	envHTTPHost    string = "QS_MULTSVC_HTTP_HOST"
	envServiceHost string = "QS_MULTSVC_SERVICE_HOST"
	envHTTPPort    string = "QS_MULTSVC_HTTP_PORT"
	envGRPCPort    string = "QS_MULTSVC_GRPC_PORT"
	envDebugPort   string = "QS_MULTSVC_DEBUG_PORT"
	envRateLimit   string = "QS_MULTSVC_RATE_LIMIT"
	envConsulHost  string = "QS_CONSUL_HOST"
	envConsulPort  string = "QS_CONSUL_PORT"
)

type config struct {
	nameSpace   string
	serviceName string
	logLevel    string
	httpHost    string
	serviceHost string
	httpPort    string
	grpcPort    string
	debugPort   string
	rateLimit   int
	zipkinV2URL string
	consulHost  string
	consulPort  string
}

// Env reads specified environment variable. If no value has been found,
// fallback is returned.
func env(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	}
	cfg := loadConfig(logger)
	logger = level.NewFilter(logger, levelOption(cfg.logLevel))
	logger = log.With(logger, "caller", log.DefaultCaller)
	logger = log.With(logger, "service", cfg.serviceName)

	errs := make(chan error, 3)
	httpHandler, zipkinTracer := NewServer(cfg, logger)

	var hs *health.Server
	if cfg.grpcPort != "" {
		var grpcServer *grpc.Server
		grpcServer, hs = transports.NewGRPCHealthServer(cfg.serviceName, stdopentracing.GlobalTracer(), zipkinTracer)
		go startGRPCServer(cfg, grpcServer, logger, errs)
	}

	if cfg.consulHost != "" {
		registrar, err := newRegistrar(cfg, logger)
		if err != nil {
			level.Error(logger).Log("consul", cfg.consulHost, "err", err)
			os.Exit(1)
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	go startHTTPServer(cfg, httpHandler, os.Stdout, logger, errs)
	go startDebugServer(cfg, logger, errs)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	err := <-errs
	if hs != nil {
		hs.SetServingStatus(cfg.serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
	}
	level.Info(logger).Log("serviceName", cfg.serviceName, "terminated", err)
}

func loadConfig(logger log.Logger) (cfg config) {
	rateLimit, err := strconv.Atoi(env(envRateLimit, defRateLimit))
	if err != nil || rateLimit <= 0 {
		level.Error(logger).Log("envRateLimit", envRateLimit, "error", err)
		rateLimit, _ = strconv.Atoi(defRateLimit)
	}

	cfg.nameSpace = env(envNameSpace, defNameSpace)
	cfg.serviceName = env(envServiceName, defServiceName)
	cfg.logLevel = env(envLogLevel, defLogLevel)
	cfg.httpHost = env(envHTTPHost, defHTTPHost)
	cfg.serviceHost = env(envServiceHost, defServiceHost)
	cfg.httpPort = env(envHTTPPort, defHTTPPort)
	cfg.grpcPort = env(envGRPCPort, defGRPCPort)
	cfg.debugPort = env(envDebugPort, defDebugPort)
	cfg.rateLimit = rateLimit
	cfg.zipkinV2URL = env(envZipkinV2URL, defZipkinV2URL)
	cfg.consulHost = env(envConsulHost, defConsulHost)
	cfg.consulPort = env(envConsulPort, defConsulPort)
	return cfg
}

func levelOption(l string) level.Option {
	switch strings.ToLower(l) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

func NewServer(cfg config, logger log.Logger) (http.Handler, *zipkin.Tracer) {
	var tracer stdopentracing.Tracer
	{
		tracer = stdopentracing.GlobalTracer()
	}

	var zipkinTracer *zipkin.Tracer
	{
		var (
			err           error
			hostPort      = fmt.Sprintf("%s:%s", cfg.serviceHost, cfg.httpPort)
			serviceName   = cfg.serviceName
			useNoopTracer = (cfg.zipkinV2URL == "")
			reporter      = zipkinhttp.NewReporter(cfg.zipkinV2URL)
		)
		zEP, _ := zipkin.NewEndpoint(serviceName, hostPort)
		zipkinTracer, err = zipkin.NewTracer(reporter, zipkin.WithLocalEndpoint(zEP), zipkin.WithNoopTracer(useNoopTracer))
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		if !useNoopTracer {
			logger.Log("tracer", "Zipkin", "type", "Native", "URL", cfg.zipkinV2URL)
		}
	}

	fieldKeys := []string{"method", "error"}
	requestCount := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: cfg.nameSpace,
		Subsystem: cfg.serviceName,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, fieldKeys)
	requestLatency := kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: cfg.nameSpace,
		Subsystem: cfg.serviceName,
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, fieldKeys)

	limiter := rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateLimit)

	service := service.New(logger, requestCount, requestLatency)
	endpoints := endpoints.New(service, logger, limiter, tracer, zipkinTracer)
	httpHandler := transports.NewHTTPHandler(endpoints, tracer, zipkinTracer, logger)

	return httpHandler, zipkinTracer
}

func newRegistrar(cfg config, logger log.Logger) (*consulsd.Registrar, error) {
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = net.JoinHostPort(cfg.consulHost, cfg.consulPort)
	consulClient, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(cfg.httpPort)
	if err != nil {
		return nil, err
	}

	registration := &consulapi.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%s", cfg.serviceName, cfg.serviceHost, cfg.httpPort),
		Name:    cfg.serviceName,
		Tags:    []string{cfg.nameSpace, "http"},
		Address: cfg.serviceHost,
		Port:    port,
		Check:   healthCheck(cfg),
	}
	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), registration, logger), nil
}

// healthCheck never targets /mult, so checks stay out of the rate limiter
// and the request metrics. It prefers the gRPC health service, then the
// debug listener, then a plain TCP dial of the HTTP port.
func healthCheck(cfg config) *consulapi.AgentServiceCheck {
	check := &consulapi.AgentServiceCheck{
		Interval: "10s",
		Timeout:  "1s",
	}
	switch {
	case cfg.grpcPort != "":
		check.GRPC = net.JoinHostPort(cfg.serviceHost, cfg.grpcPort) + "/" + cfg.serviceName
	case cfg.debugPort != "":
		check.HTTP = fmt.Sprintf("http://%s/health", net.JoinHostPort(cfg.serviceHost, cfg.debugPort))
	default:
		check.TCP = net.JoinHostPort(cfg.serviceHost, cfg.httpPort)
	}
	return check
}

// startHTTPServer binds the HTTP listener and announces readiness on ready
// before serving.
func startHTTPServer(cfg config, httpHandler http.Handler, ready io.Writer, logger log.Logger, errs chan error) {
	p := net.JoinHostPort(cfg.httpHost, cfg.httpPort)
	listener, err := net.Listen("tcp", p)
	if err != nil {
		level.Error(logger).Log("serviceName", cfg.serviceName, "protocol", "HTTP", "listen", p, "err", err)
		errs <- err
		return
	}
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	level.Info(logger).Log("serviceName", cfg.serviceName, "protocol", "HTTP", "exposed", port)
	fmt.Fprintf(ready, "Servidor rodando em http://%s\n", net.JoinHostPort(cfg.httpHost, port))
	errs <- http.Serve(listener, httpHandler)
}

func startGRPCServer(cfg config, server *grpc.Server, logger log.Logger, errs chan error) {
	p := fmt.Sprintf(":%s", cfg.grpcPort)
	listener, err := net.Listen("tcp", p)
	if err != nil {
		level.Error(logger).Log("serviceName", cfg.serviceName, "protocol", "GRPC", "listen", cfg.grpcPort, "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("serviceName", cfg.serviceName, "protocol", "GRPC", "exposed", cfg.grpcPort)
	errs <- server.Serve(listener)
}

func startDebugServer(cfg config, logger log.Logger, errs chan error) {
	if cfg.debugPort == "" {
		return
	}
	level.Info(logger).Log("serviceName", cfg.serviceName, "protocol", "HTTP", "debug", cfg.debugPort)
	errs <- http.ListenAndServe(fmt.Sprintf(":%s", cfg.debugPort), debugHandler())
}

// debugHandler serves metrics and the consul health endpoint. It is kept
// off the public listener so /mult stays the only public route.
func debugHandler() http.Handler {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	m.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return m
}
