package control

import (
	"context"
	"strings"

	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/internal/observability"
	"github.com/signalsfoundry/refraction-simulator/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const tracerName = "github.com/signalsfoundry/refraction-simulator/internal/control"

// TracingUnaryServerInterceptor names each control RPC span "Control/<Method>"
// and tags it with the method and request ID. When no otelgrpc stats handler
// created a span, the interceptor starts its own.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "Control/" + method

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			code := status.Code(err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("rpc.grpc.status", code.String()))
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

// startBodySpan opens "Control/<rpc>/<body>" for a request that places body
// at requested. Finish it with endBodySpan.
func startBodySpan(ctx context.Context, rpc, body string, requested model.Point) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "Control/"+rpc+"/"+body,
		trace.WithAttributes(
			attribute.String("body", body),
			attribute.Float64("body.requested.x", requested.X),
			attribute.Float64("body.requested.y", requested.Y),
		),
	)
}

// endBodySpan records where the body ended up after clamping and ends span.
func endBodySpan(span trace.Span, requested, placed model.Point, err error) {
	if err != nil {
		endSpan(span, err)
		return
	}
	span.SetAttributes(
		attribute.Float64("body.x", placed.X),
		attribute.Float64("body.y", placed.Y),
		attribute.Bool("body.clamped", placed != requested),
	)
	span.End()
}

// startLayersSpan opens the span for rebuilding the layered medium.
func startLayersSpan(ctx context.Context, cfg model.LayerConfig) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "Control/ConfigureLayers/medium",
		trace.WithAttributes(
			attribute.Int("layers.count", cfg.Count),
			attribute.Float64("layers.spacing", cfg.Spacing),
			attribute.Float64("layers.top_index", cfg.TopIndex),
			attribute.Float64("layers.bottom_index", cfg.BottomIndex),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
