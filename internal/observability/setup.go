package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ncecere/chatstore/backend/internal/config"
)

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	messageCounter     *promreg.CounterVec
	messageTokens      *promreg.CounterVec
	messageCost        *promreg.CounterVec
	syncRunCounter     *promreg.CounterVec
	syncRunDuration    *promreg.HistogramVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("chatstore"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		rawEndpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		endpoint := rawEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		client := otlptracegrpc.NewClient(opts...)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		httpRequests := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "chatstore",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "chatstore",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		messages := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "chatstore",
				Name:      "messages_written_total",
				Help:      "Total chat messages committed, by role and model.",
			},
			[]string{"role", "model"},
		)
		tokens := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "chatstore",
				Name:      "message_tokens_total",
				Help:      "Total input/output tokens recorded on messages.",
			},
			[]string{"model", "type"},
		)
		cost := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "chatstore",
				Name:      "message_cost_usd_micros_total",
				Help:      "Cumulative assistant message cost in USD micros.",
			},
			[]string{"model"},
		)
		syncRuns := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: "chatstore",
				Name:      "catalog_sync_runs_total",
				Help:      "Catalog sync runs by terminal status.",
			},
			[]string{"status"},
		)
		syncDuration := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: "chatstore",
				Name:      "catalog_sync_duration_seconds",
				Help:      "Catalog sync run duration in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		)
		for _, collector := range []promreg.Collector{httpRequests, httpLatency, messages, tokens, cost, syncRuns, syncDuration} {
			if err := registry.Register(collector); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.messageCounter = messages
		provider.messageTokens = tokens
		provider.messageCost = cost
		provider.syncRunCounter = syncRuns
		provider.syncRunDuration = syncDuration
	}

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordMessage counts one committed message write and its token volumes.
func (p *Provider) RecordMessage(role, model string, inputTokens, outputTokens int64) {
	if p == nil || p.messageCounter == nil {
		return
	}
	p.messageCounter.WithLabelValues(role, model).Inc()
	if p.messageTokens != nil {
		if inputTokens > 0 {
			p.messageTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
		}
		if outputTokens > 0 {
			p.messageTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
		}
	}
}

// RecordMessageCost accumulates assistant message cost per model.
func (p *Provider) RecordMessageCost(model string, costUsdMicros int64) {
	if p == nil || p.messageCost == nil || costUsdMicros <= 0 {
		return
	}
	p.messageCost.WithLabelValues(model).Add(float64(costUsdMicros))
}

// RecordSyncRun counts a finished catalog sync run and its duration.
func (p *Provider) RecordSyncRun(status string, duration time.Duration) {
	if p == nil || p.syncRunCounter == nil {
		return
	}
	p.syncRunCounter.WithLabelValues(status).Inc()
	if p.syncRunDuration != nil {
		p.syncRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	}
}
