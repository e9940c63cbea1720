package api

import (
	"context"

	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

const defaultServiceName = "casuite"

// Tracing 追踪生命周期
type Tracing struct {
	provider *tracesdk.TracerProvider
}

// InitTracing 初始化 OpenTelemetry 追踪,未启用时返回空实现
func InitTracing(ctx context.Context, cfg config.TracingConfig) (*Tracing, error) {
	if !cfg.Enabled {
		return &Tracing{}, nil
	}

	// 1. 创建 OTLP/HTTP exporter
	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// 2. 创建资源
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName(cfg))),
	)
	if err != nil {
		return nil, err
	}

	// 3. 设置全局 TracerProvider
	provider := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{provider: provider}, nil
}

// Enabled 是否启用
func (t *Tracing) Enabled() bool {
	return t != nil && t.provider != nil
}

// Shutdown 关闭追踪
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TracingMiddleware 追踪中间件
func TracingMiddleware(cfg config.TracingConfig) gin.HandlerFunc {
	return otelgin.Middleware(serviceName(cfg))
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return defaultServiceName
}
