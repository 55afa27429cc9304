package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// Core implements zapcore.Core to forward error logs to OpenTelemetry as spans.
type Core struct {
	zapcore.LevelEnabler
	tracer trace.Tracer
	fields []zapcore.Field
}

// NewCore creates a core backed by the global tracer provider.
func NewCore(enab zapcore.LevelEnabler) zapcore.Core {
	return NewCoreWithTracer(enab, otel.Tracer("logs"))
}

// NewCoreWithTracer creates a core that records spans on tracer.
func NewCoreWithTracer(enab zapcore.LevelEnabler, tracer trace.Tracer) zapcore.Core {
	return &Core{
		LevelEnabler: enab,
		tracer:       tracer,
	}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	// Only forward Error and higher severity
	if ent.Level < zapcore.ErrorLevel {
		return nil
	}

	_, span := c.tracer.Start(context.Background(), "error."+getErrorCategory(ent))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
		attribute.String("error.caller", ent.Caller.String()),
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}
	for key, value := range enc.Fields {
		attrs = append(attrs, attribute.String(key, fmt.Sprint(value)))
	}

	span.SetAttributes(attrs...)
	return nil
}

func (c *Core) Sync() error {
	return nil
}

// getErrorCategory determines the error category from the caller or logger name.
func getErrorCategory(ent zapcore.Entry) string {
	source := ent.Caller.Function + " " + ent.LoggerName
	switch {
	case strings.Contains(source, "database"):
		return "database"
	case strings.Contains(source, "redis"), strings.Contains(source, "cache"):
		return "cache"
	case strings.Contains(source, "reputation"):
		return "reputation"
	case strings.Contains(source, "setup"):
		return "setup"
	default:
		return "application"
	}
}
