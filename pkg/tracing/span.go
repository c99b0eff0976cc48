// Package tracing times the steps of a request as a small span tree carried
// in the context. When the root finishes the whole tree is written as one
// debug log record, nested as slog groups. The trace ID is the request ID.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{name: name, start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) TraceID() string { return s.traceID }

// End stops the clock. Later calls return the first duration.
func (s *Span) End() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
	return s.duration
}

// Finish ends a root span and logs its tree.
func (s *Span) Finish() {
	s.End()
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := append([]slog.Attr{
		slog.String("trace_id", s.traceID),
		slog.String("span", s.name),
	}, s.fields()...)
	slog.LogAttrs(ctx, slog.LevelDebug, "trace", attrs...)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// SetError records err on the span; nil is ignored.
func (s *Span) SetError(err error) {
	if err != nil {
		s.SetAttr("error", err.Error())
	}
}

// Attr returns the last value set for key.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attrs) - 1; i >= 0; i-- {
		if s.attrs[i].Key == key {
			return s.attrs[i].Value.Any(), true
		}
	}
	return nil, false
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) fields() []slog.Attr {
	s.mu.Lock()
	out := make([]slog.Attr, 0, len(s.attrs)+len(s.children)+1)
	out = append(out, slog.Int64("duration_ms", s.duration.Milliseconds()))
	out = append(out, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	for _, c := range children {
		c.End()
		sub := c.fields()
		args := make([]any, len(sub))
		for i, a := range sub {
			args[i] = a
		}
		out = append(out, slog.Group(c.name, args...))
	}
	return out
}
