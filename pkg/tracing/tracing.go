// Package tracing wraps OpenTelemetry tracing for kycform.
package tracing

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for a named service.
type Tracer struct {
	serviceName string
	tracer      trace.Tracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer(serviceName string) *Tracer {
	return NewTracerWithProvider(serviceName, otel.GetTracerProvider())
}

// NewTracerWithProvider creates a tracer from an explicit provider.
func NewTracerWithProvider(serviceName string, provider trace.TracerProvider) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		tracer:      provider.Tracer(serviceName),
	}
}

// StartSpan starts a new span as a child of any span in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	cfg := &spanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithAttributes(cfg.attrs...),
		trace.WithAttributes(attribute.String("service.name", t.serviceName)),
	)
	return ctx, &Span{span: span}
}

// Span is a thin handle over an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// End finishes the span.
func (s *Span) End() {
	s.span.End()
}

// SetTag sets a string attribute.
func (s *Span) SetTag(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// SetError records err and marks the span as failed. A nil err is ignored.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// AddEvent records a named event with string attributes.
func (s *Span) AddEvent(name string, attrs map[string]string) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(kv...))
}

// TraceID returns the hex trace id, or "" for a non-recording span.
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanOption configures a span at start.
type SpanOption func(*spanConfig)

type spanConfig struct {
	attrs []attribute.KeyValue
}

// WithTag adds a string attribute at span start.
func WithTag(key, value string) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, attribute.String(key, value))
	}
}

// TracingMiddleware adds a server span to HTTP requests.
func TracingMiddleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.StartSpan(r.Context(), "http.request",
				WithTag("http.method", r.Method),
				WithTag("http.route", r.URL.Path),
			)
			defer span.End()

			rw := &tracingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetTag("http.status_code", fmt.Sprintf("%d", rw.status))
			if rw.status >= 500 {
				span.SetError(fmt.Errorf("http status %d", rw.status))
			}
		})
	}
}

type tracingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *tracingResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection over for a WebSocket upgrade.
func (rw *tracingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw.status = http.StatusSwitchingProtocols
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Unwrap exposes the wrapped writer so http.Hijacker is reachable
// for WebSocket upgrades through http.ResponseController.
func (rw *tracingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
