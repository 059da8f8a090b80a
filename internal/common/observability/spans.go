package observability

import (
	"context"

	"soloparent-workers/internal/common/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the service log. There is no trace collector in this
// deployment; spans show up as debug lines correlated by traceId.
type logExporter struct {
	log logger.Logger
}

func newLogExporter(log logger.Logger) *logExporter {
	return &logExporter{log: log}
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := map[string]interface{}{
			"traceId":    s.SpanContext().TraceID().String(),
			"spanId":     s.SpanContext().SpanID().String(),
			"durationMs": s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status":     s.Status().Code.String(),
		}
		if s.Parent().IsValid() {
			fields["parentSpanId"] = s.Parent().SpanID().String()
		}
		if desc := s.Status().Description; desc != "" {
			fields["statusDescription"] = desc
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.AsInterface()
		}
		e.log.Debug("span "+s.Name(), fields)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }
