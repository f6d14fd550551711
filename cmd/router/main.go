package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	consulapi "github.com/hashicorp/consul/api"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"

	routertransport "github.com/cage1016/gokitmultsvc/pkg/router/transport"
)

const (
	defZipkinV2URL  = ""
	defNameSpace    = "gokitmultsvc"
	defServiceName  = "router"
	defLogLevel     = "info"
	defHTTPPort     = "8000"
	defRetryTimeout = "500" // time.Millisecond
	defRetryMax     = "3"
	defMultsvcURL   = ""
	defMultsvcName  = "multsvc"
	defConsulHost   = ""
	defConsulPort   = "8500"
	envZipkinV2URL  = "QS_ZIPKIN_V2_URL"
	envNameSpace    = "QS_ROUTER_NAMESPACE"
	envServiceName  = "QS_ROUTER_SERVICE_NAME"
	envLogLevel     = "QS_ROUTER_LOG_LEVEL"
	envHTTPPort     = "QS_ROUTER_HTTP_PORT"
	envRetryMax     = "QS_ROUTER_RETRY_MAX"
	envRetryTimeout = "QS_ROUTER_RETRY_TIMEOUT"
	envMultsvcURL   = "QS_MULTSVC_URL"
	envMultsvcName  = "QS_MULTSVC_SERVICE_NAME"
	envConsulHost   = "QS_CONSUL_HOST"
	envConsulPort   = "QS_CONSUL_PORT"
)

// Env reads specified environment variable. If no value has been found,
// fallback is returned.
func env(key string, fallback string) (s0 string) {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type config struct {
	nameSpace    string
	serviceName  string
	logLevel     string
	httpPort     string
	zipkinV2URL  string
	retryMax     int64
	retryTimeout int64
	multsvcURLs  []string
	multsvcName  string
	consulHost   string
	consulPort   string
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

	var tracer stdopentracing.Tracer
	{
		tracer = stdopentracing.GlobalTracer()
	}

	var zipkinTracer *zipkin.Tracer
	{
		var (
			err           error
			hostPort      = fmt.Sprintf("localhost:%s", cfg.httpPort)
			serviceName   = cfg.serviceName
			useNoopTracer = (cfg.zipkinV2URL == "")
			reporter      = zipkinhttp.NewReporter(cfg.zipkinV2URL)
		)
		defer reporter.Close()
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

	instancer, err := newInstancer(cfg, logger)
	if err != nil {
		level.Error(logger).Log("instancer", cfg.multsvcName, "err", err)
		os.Exit(1)
	}
	defer instancer.Stop()

	errs := make(chan error, 1)

	tr := routertransport.NewHandlerBuilder()
	tr.AddHandler("multsvc", routertransport.MakeMultsvcHandler(
		instancer,
		int(cfg.retryMax),
		time.Duration(cfg.retryTimeout)*time.Millisecond,
		tracer,
		zipkinTracer,
		logger,
	))

	go startHTTPServer(tr, cfg.httpPort, logger, errs)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	errc := <-errs
	level.Info(logger).Log("serviceName", cfg.serviceName, "terminated", errc)
}

func loadConfig(logger log.Logger) (cfg config) {
	retryMax, err := strconv.ParseInt(env(envRetryMax, defRetryMax), 10, 0)
	if err != nil {
		level.Error(logger).Log("envRetryMax", envRetryMax, "error", err)
		retryMax, _ = strconv.ParseInt(defRetryMax, 10, 0)
	}

	retryTimeout, err := strconv.ParseInt(env(envRetryTimeout, defRetryTimeout), 10, 0)
	if err != nil {
		level.Error(logger).Log("envRetryTimeout", envRetryTimeout, "error", err)
		retryTimeout, _ = strconv.ParseInt(defRetryTimeout, 10, 0)
	}

	cfg.nameSpace = env(envNameSpace, defNameSpace)
	cfg.serviceName = env(envServiceName, defServiceName)
	cfg.logLevel = env(envLogLevel, defLogLevel)
	cfg.httpPort = env(envHTTPPort, defHTTPPort)
	cfg.zipkinV2URL = env(envZipkinV2URL, defZipkinV2URL)
	cfg.retryMax = retryMax
	cfg.retryTimeout = retryTimeout
	cfg.multsvcURLs = splitInstances(env(envMultsvcURL, defMultsvcURL))
	cfg.multsvcName = env(envMultsvcName, defMultsvcName)
	cfg.consulHost = env(envConsulHost, defConsulHost)
	cfg.consulPort = env(envConsulPort, defConsulPort)
	return
}

func levelOption(l string) level.Option {
	switch strings.ToLower(l) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func splitInstances(s string) (instances []string) {
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			instances = append(instances, v)
		}
	}
	return instances
}

// newInstancer discovers multsvc through consul when QS_CONSUL_HOST is set,
// and otherwise serves the fixed QS_MULTSVC_URL list.
func newInstancer(cfg config, logger log.Logger) (sd.Instancer, error) {
	if cfg.consulHost == "" {
		return sd.FixedInstancer(cfg.multsvcURLs), nil
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = net.JoinHostPort(cfg.consulHost, cfg.consulPort)
	consulClient, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}
	return consulsd.NewInstancer(consulsd.NewClient(consulClient), logger, cfg.multsvcName, []string{cfg.nameSpace}, true), nil
}

func startHTTPServer(handler http.Handler, port string, logger log.Logger, errs chan error) {
	if port == "" {
		return
	}
	p := fmt.Sprintf(":%s", port)
	level.Info(logger).Log("protocol", "HTTP", "exposed", port)
	errs <- http.ListenAndServe(p, handler)
}
