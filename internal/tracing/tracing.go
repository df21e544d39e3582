package tracing

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider installs a global tracer provider whose finished spans are written
// to the logger at debug level.
func NewProvider(logger zerolog.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger}),
	)
	otel.SetTracerProvider(tp)
	return tp
}

// logProcessor logs every ended span
type logProcessor struct {
	logger zerolog.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	event := p.logger.Debug()
	if s.Status().Code == codes.Error {
		event = p.logger.Warn().Str("error", s.Status().Description)
	}
	for _, attr := range s.Attributes() {
		if v := attr.Value.Emit(); v != "" {
			event = event.Str(string(attr.Key), v)
		}
	}
	event.
		Str("span", s.Name()).
		Str("trace_id", s.SpanContext().TraceID().String()).
		Dur("duration", s.EndTime().Sub(s.StartTime())).
		Msg("Span finished")
}

func (p *logProcessor) Shutdown(context.Context) error { return nil }

func (p *logProcessor) ForceFlush(context.Context) error { return nil }
