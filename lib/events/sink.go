// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives events. Emit must not block for long: the kernel calls
// it on the transition path.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Multi fans one event out to several sinks in order.
type Multi []Sink

// Emit forwards e to every sink.
func (m Multi) Emit(e Event) {
	for _, sink := range m {
		sink.Emit(e)
	}
}

// LogSink writes events as structured log records.
type LogSink struct {
	Logger *slog.Logger
}

// Emit logs e at the slog level matching its event level.
func (s LogSink) Emit(e Event) {
	level := slog.LevelInfo
	switch e.Level {
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("event", e.Type.String()),
		slog.Int("event_type", int(e.Type)),
		slog.String("ws_id", e.WorkspaceID),
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if len(e.Data) > 0 {
		attrs = append(attrs, slog.Any("data", e.Data))
	}
	s.Logger.LogAttrs(context.Background(), level, e.Message, attrs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Last returns the most recent event and whether there was one.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
