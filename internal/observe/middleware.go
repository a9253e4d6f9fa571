package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder wraps [http.ResponseWriter] to capture the status code
// written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the admin server's handlers: it extracts W3C trace
// context from incoming headers (starting a new trace when absent), opens a
// server span, mirrors the trace ID back as X-Correlation-ID, records the
// request duration to [Metrics.HTTPRequestDuration], and logs completion.
//
// Completion logs are at debug level. The admin surface is scraped every few
// seconds by Prometheus and the state dashboard, which would drown the
// pipeline's own logs at info.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, span := serverSpan(prop, r)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			finishRequest(ctx, m, span, r, rec.statusCode, time.Since(start))
		})
	}
}

// serverSpan continues the caller's trace when the request carries one, then
// opens the server span for this request.
func serverSpan(prop propagation.TraceContext, r *http.Request) (context.Context, trace.Span) {
	ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPath(r.URL.Path),
		),
	)
}

// finishRequest records the duration histogram, tags the span with the
// response status, and emits the completion log line.
func finishRequest(ctx context.Context, m *Metrics, span trace.Span, r *http.Request, status int, duration time.Duration) {
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
		),
	)
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))

	slog.LogAttrs(ctx, slog.LevelDebug, "admin request completed",
		slog.String("trace_id", CorrelationID(ctx)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)
}
