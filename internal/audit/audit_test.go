package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	if d.Dropped() != 0 || d.Emitted() != 0 {
		t.Fatal("expected nil dispatcher counters to be zero")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "session_created", Principal: "p1"})
	}
	d.Close()

	if got := d.Emitted(); got != 5 {
		t.Fatalf("expected 5 emitted events, got %d", got)
	}
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 buffered events in sink, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := d.Emitted(); got != 5 {
		t.Fatalf("expected emit after close to be ignored, got %d", got)
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, logger)

	// One event is held by the blocked sink, one fills the buffer.
	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}

	close(sink.release)
	d.Close()

	if sink.count() == 0 {
		t.Fatal("expected queued events to reach the sink")
	}
	if !strings.Contains(logs.String(), "audit event dropped") {
		t.Fatalf("expected drop to be logged, got %q", logs.String())
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The sink holds one event and the buffer holds another, so this blocks
	// until the context expires, unless the worker has not yet dequeued.
	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(ctx, Event{EventType: "c"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected cancelled emit to count as dropped")
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "password_reset_success", Principal: "p1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "INVALID_CREDENTIALS"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first.EventType != "password_reset_success" || first.Principal != "p1" || !first.Success {
		t.Fatalf("unexpected event %+v", first)
	}
	if !strings.Contains(lines[0], `"principal_id":"p1"`) {
		t.Fatalf("expected principal_id field, got %s", lines[0])
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "login_success", Success: true, Principal: "p1"})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Success: false, Error: "INVALID_CREDENTIALS"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"INFO"`) || !strings.Contains(lines[0], `"component":"audit"`) {
		t.Fatalf("unexpected success record %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"WARN"`) || !strings.Contains(lines[1], `"error":"INVALID_CREDENTIALS"`) {
		t.Fatalf("unexpected failure record %s", lines[1])
	}
}
