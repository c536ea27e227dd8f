package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/odpf/salt/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/odpf/priest/config"
)

const MetricWaitInterval = time.Second * 2

var (
	appUptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "application_uptime_seconds",
		Help: "Seconds since the application started",
	})
	appHeartbeat = promauto.NewCounter(prometheus.CounterOpts{
		Name: "application_heartbeat",
		Help: "Application heartbeat pings",
	})
)

// Init starts the tracer provider and the metrics server when configured,
// the returned function releases both.
func Init(l log.Logger, conf config.TelemetryConfig) (func(), error) {
	var tp *tracesdk.TracerProvider
	var err error
	if conf.JaegerAddr != "" {
		l.Debug("enabling jaeger traces", "addr", conf.JaegerAddr)
		tp, err = tracerProvider(conf.JaegerAddr)
		if err != nil {
			return nil, err
		}

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	var metricServer *http.Server
	done := make(chan struct{})
	if conf.ProfileAddr != "" {
		l.Debug("enabling profile metrics", "addr", conf.ProfileAddr)
		go reportUptime(done)

		metricServer = MetricsServer(conf.ProfileAddr)
		go func() {
			if err := metricServer.ListenAndServe(); err != http.ErrServerClosed {
				l.Warn("failed while serving metrics", "err", err)
			}
		}()
	}
	return func() {
		close(done)
		if tp != nil {
			if err := tp.Shutdown(context.Background()); err != nil {
				l.Warn("failed to shutdown trace provider", "err", err)
			}
		}
		if metricServer != nil {
			if err := metricServer.Close(); err != nil {
				l.Warn("failed to shutdown metrics http server", "err", fmt.Errorf("metricServer.Close: %w", err))
			}
		}
	}, nil
}

// tracerProvider returns an OpenTelemetry TracerProvider configured to use
// the Jaeger exporter that will send spans to the provided url.
func tracerProvider(url string) (*tracesdk.TracerProvider, error) {
	jaegerExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
	if err != nil {
		return nil, err
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(jaegerExporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(config.AppName),
			semconv.ServiceVersionKey.String(config.BuildVersion),
			attribute.String("build_commit", config.BuildCommit),
			attribute.String("build_date", config.BuildDate),
		)),
	)

	return tp, nil
}

// reportUptime keeps the app uptime and heartbeat metrics current until done
// is closed.
func reportUptime(done <-chan struct{}) {
	ticker := time.NewTicker(MetricWaitInterval)
	defer ticker.Stop()

	startTime := time.Now()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			appUptime.Set(time.Since(startTime).Seconds())
			appHeartbeat.Inc()
		}
	}
}

// MetricsServer serves prometheus metrics, pprof and a liveness probe.
func MetricsServer(addr string) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Path("/ping").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "pong")
	})

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: MetricWaitInterval,
	}
}
