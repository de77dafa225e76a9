package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/shared/id"
)

// TraceHeader carries the trace id on requests and responses
const TraceHeader = "X-Trace-ID"

// maxTraceIDLen bounds caller-supplied ids that end up in logs
const maxTraceIDLen = 128

type contextKey struct{}

var traceIDKey = contextKey{}

// Span is one traced operation
type Span struct {
	TraceID    string
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Tags       map[string]string
	Err        error
}

// StartSpan begins a span, reusing the trace id already in ctx
func StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = id.NewRequestID().String()
		ctx = WithTraceID(ctx, traceID)
	}

	return &Span{
		TraceID:   traceID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}, ctx
}

// SetTag records a key/value on the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// Finish stamps the duration
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// Fields renders the span for structured logging
func (s *Span) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("trace_id", s.TraceID),
		zap.String("span", s.Name),
		zap.Duration("duration", s.Duration),
	}
	if s.StatusCode != 0 {
		fields = append(fields, zap.Int("status", s.StatusCode))
	}
	for k, v := range s.Tags {
		fields = append(fields, zap.String(k, v))
	}
	if s.Err != nil {
		fields = append(fields, zap.Error(s.Err))
	}
	return fields
}

// WithTraceID attaches a trace id to ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom returns the trace id in ctx, or ""
func TraceIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

func validTraceID(s string) bool {
	if s == "" || len(s) > maxTraceIDLen {
		return false
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
