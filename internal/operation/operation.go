// Package operation reports the lifecycle and progress of a long-running operation
// (a bootstrap run, a service save) to whoever is watching it.
package operation

import (
	"context"
	"log/slog"
	"sync"
)

// Sink observes one operation at a time: Begin, any number of Report calls,
// then exactly one of Succeed or Fail, then End.
type Sink interface {
	Begin()
	Report(percent int, label string)
	Succeed(message string)
	Fail(err error)
	End()
}

// Progress is the percentage counter of one operation. It has a single writer,
// only moves forward and never exceeds 100.
type Progress struct {
	mu      sync.RWMutex
	percent int
	label   string
	sink    Sink
}

// NewProgress creates a counter at 0 reporting to sink.
func NewProgress(sink Sink) *Progress {
	if sink == nil {
		sink = Discard{}
	}
	return &Progress{sink: sink}
}

// Set moves the counter to percent. Values below the current one are ignored, values above 100 are clamped.
// An empty label keeps the previous one.
func (p *Progress) Set(percent int, label string) {
	p.mu.Lock()
	if percent > 100 {
		percent = 100
	}
	if percent > p.percent {
		p.percent = percent
	}
	if label != "" {
		p.label = label
	}
	current := p.percent
	p.mu.Unlock()

	p.sink.Report(current, label)
}

// Advance moves the counter forward by delta.
func (p *Progress) Advance(delta int, label string) {
	p.mu.RLock()
	next := p.percent + delta
	p.mu.RUnlock()
	p.Set(next, label)
}

// Value returns the current percentage and label.
func (p *Progress) Value() (int, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percent, p.label
}

// Run drives sink through one operation around fn. The first error returned by fn
// is reported once through Fail and returned unchanged.
func Run(ctx context.Context, sink Sink, successMessage string, fn func(ctx context.Context, progress *Progress) error) error {
	if sink == nil {
		sink = Discard{}
	}
	sink.Begin()
	defer sink.End()

	progress := NewProgress(sink)
	if err := fn(ctx, progress); err != nil {
		sink.Fail(err)
		return err
	}
	sink.Succeed(successMessage)
	return nil
}

// Discard is a Sink that ignores every call.
type Discard struct{}

// Begin implements Sink.
func (Discard) Begin() {}

// Report implements Sink.
func (Discard) Report(int, string) {}

// Succeed implements Sink.
func (Discard) Succeed(string) {}

// Fail implements Sink.
func (Discard) Fail(error) {}

// End implements Sink.
func (Discard) End() {}

// LogSink reports operation events as structured log records.
type LogSink struct {
	Logger *slog.Logger
	Name   string
}

// Begin implements Sink.
func (s LogSink) Begin() { s.Logger.Info("operation started", "operation", s.Name) }

// Report implements Sink.
func (s LogSink) Report(percent int, label string) {
	s.Logger.Debug("operation progress", "operation", s.Name, "percent", percent, "label", label)
}

// Succeed implements Sink.
func (s LogSink) Succeed(message string) {
	s.Logger.Info("operation succeeded", "operation", s.Name, "message", message)
}

// Fail implements Sink.
func (s LogSink) Fail(err error) {
	s.Logger.Error("operation failed", "operation", s.Name, "error", err)
}

// End implements Sink.
func (s LogSink) End() { s.Logger.Debug("operation ended", "operation", s.Name) }

var (
	_ Sink = Discard{}
	_ Sink = LogSink{}
)
