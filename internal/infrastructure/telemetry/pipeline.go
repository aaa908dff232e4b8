// Package telemetry exports traces, metrics and logs of the scan station over OTLP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultMetricInterval = time.Minute

// PipelineConfig selects what the station exports and where
type PipelineConfig struct {
	Enabled           bool
	Logs              bool // ship zap entries too; needs Enabled
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	SamplingRatio     float64
	MetricInterval    time.Duration
}

// Pipeline owns the OTLP providers of one process. A disabled pipeline leaves the
// global no-op providers in place and every accessor stays usable.
type Pipeline struct {
	name    string
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider
	stops   []func(context.Context) error
	log     *zap.Logger
}

// Start builds the exporters and installs the providers globally.
// The gRPC exporters dial lazily, so a missing collector is not an error here.
func Start(ctx context.Context, cfg PipelineConfig, log *zap.Logger) (*Pipeline, error) {
	p := &Pipeline{name: cfg.ServiceName, log: log}
	if !cfg.Enabled {
		log.Info("telemetry disabled")
		return p, nil
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = defaultMetricInterval
	}

	steps := []func(context.Context, PipelineConfig, *resource.Resource) error{p.startTraces, p.startMetrics}
	if cfg.Logs {
		steps = append(steps, p.startLogs)
	}
	for _, step := range steps {
		if err := step(ctx, cfg, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}

	log.Info("telemetry exporting",
		zap.String("collector", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.Duration("metric_interval", cfg.MetricInterval),
		zap.Bool("logs", p.logs != nil),
	)
	return p, nil
}

func (p *Pipeline) startTraces(ctx context.Context, cfg PipelineConfig, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}
	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	p.stops = append(p.stops, p.traces.Shutdown)
	otel.SetTracerProvider(p.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return nil
}

func (p *Pipeline) startMetrics(ctx context.Context, cfg PipelineConfig, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("metric exporter: %w", err)
	}
	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricInterval))),
	)
	p.stops = append(p.stops, p.metrics.Shutdown)
	otel.SetMeterProvider(p.metrics)
	return nil
}

func (p *Pipeline) startLogs(ctx context.Context, cfg PipelineConfig, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("log exporter: %w", err)
	}
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
	)
	p.stops = append(p.stops, p.logs.Shutdown)
	global.SetLoggerProvider(p.logs)
	return nil
}

// samplerFor keeps the parent's decision and samples root spans at ratio
func samplerFor(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Enabled reports whether spans and metrics leave the process
func (p *Pipeline) Enabled() bool {
	return p.traces != nil
}

// Meter returns the station meter, a no-op one when the pipeline is disabled
func (p *Pipeline) Meter() metric.Meter {
	if p.metrics == nil {
		return noop.NewMeterProvider().Meter(p.name)
	}
	return p.metrics.Meter(p.name)
}

// LogCore tees zap entries at or above level into the OTLP log pipeline.
// Without a log exporter it is a no-op core.
func (p *Pipeline) LogCore(level zapcore.Level) zapcore.Core {
	if p.logs == nil {
		return zapcore.NewNopCore()
	}
	core := otelzap.NewCore(p.name, otelzap.WithLoggerProvider(p.logs))
	filtered, err := zapcore.NewIncreaseLevelCore(core, level)
	if err != nil {
		return core
	}
	return filtered
}

// Shutdown flushes and stops every provider. Logs go last so the messages of
// the other shutdowns still ship.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for _, stop := range p.stops {
		err = errors.Join(err, stop(ctx))
	}
	if err != nil {
		p.log.Error("telemetry shutdown", zap.Error(err))
	}
	return err
}
