package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/kiln/internal/core/ports"
)

// Recorder implements ports.Tracer using the progrock library. Each span
// becomes a progrock vertex keyed by the digest of its name, so re-running
// a module reuses its vertex on the tape.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a new Recorder with a default tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Start records a new vertex for the named unit of work.
func (r *Recorder) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	v := r.rec.Vertex(digest.FromString(name), name)
	return ctx, &vertexSpan{vertex: v}
}

// EmitPlan records the set of modules scheduled for compilation as a
// single, immediately completed vertex.
func (r *Recorder) EmitPlan(_ context.Context, moduleIDs []string) {
	v := r.rec.Vertex(digest.FromString("plan"), "plan")
	_, _ = fmt.Fprintln(v.Stdout(), strings.Join(moduleIDs, "\n"))
	v.Done(nil)
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// vertexSpan implements ports.Span wrapping *progrock.VertexRecorder.
type vertexSpan struct {
	vertex *progrock.VertexRecorder

	mu   sync.Mutex
	err  error
	done bool
}

// Write appends to the vertex's stdout stream.
func (s *vertexSpan) Write(p []byte) (n int, err error) {
	return s.vertex.Stdout().Write(p)
}

// RecordError marks the vertex as failed when the span ends.
func (s *vertexSpan) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetAttribute appends the attribute to the vertex's output stream.
func (s *vertexSpan) SetAttribute(key string, value any) {
	_, _ = fmt.Fprintf(s.vertex.Stdout(), "%s=%v\n", key, value)
}

// End completes the vertex, carrying any recorded error.
func (s *vertexSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.vertex.Done(s.err)
}
