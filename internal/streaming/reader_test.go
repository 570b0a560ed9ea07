package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError, Format: "text"})
}

// mockStream replays scripted chunks and then EOF, like a response body
// whose network framing we control.
type mockStream struct {
	chunks [][]byte
	pos    int
	closed bool
}

func (m *mockStream) Read(p []byte) (int, error) {
	if m.pos >= len(m.chunks) {
		return 0, io.EOF
	}
	n := copy(p, m.chunks[m.pos])
	m.pos++
	return n, nil
}

func (m *mockStream) Close() error {
	m.closed = true
	return nil
}

// blockingStream blocks every Read until Close, standing in for a stream
// with no data in flight during cancellation.
type blockingStream struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{closed: make(chan struct{})}
}

func (b *blockingStream) Read(p []byte) (int, error) {
	<-b.closed
	return 0, errors.New("read on closed stream")
}

func (b *blockingStream) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func collectEvents(t *testing.T, chunks [][]byte) ([]Event, error) {
	t.Helper()
	r := NewReader(&mockStream{chunks: chunks}, testLogger())
	var events []Event
	err := r.Run(context.Background(), func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestReaderDispatchesInOrder(t *testing.T) {
	events, err := collectEvents(t, [][]byte{
		[]byte("data: {\"type\":\"phase\",\"phase\":\"scraping\"}\n"),
		[]byte("data: {\"type\":\"progress\",\"scannedCount\":5}\ndata: {\"type\":\"done\",\"listings\":[]}\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	kinds := []EventKind{events[0].Kind(), events[1].Kind(), events[2].Kind()}
	want := []EventKind{KindPhase, KindProgress, KindDone}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d kind = %s, want %s", i, kinds[i], want[i])
		}
	}
}

// An event split across chunk boundaries must decode the same as one
// delivered whole.
func TestReaderReassemblesSplitEvent(t *testing.T) {
	events, err := collectEvents(t, [][]byte{
		[]byte("data: {\"type\":\"progress\",\"scan"),
		[]byte("nedCount\":7}\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if p := events[0].(ProgressEvent); p.ScannedCount != 7 {
		t.Fatalf("scannedCount = %d, want 7", p.ScannedCount)
	}
}

// A stream cut off mid-event ends cleanly: the trailing fragment is
// discarded, everything before it was already dispatched.
func TestReaderToleratesTruncatedTail(t *testing.T) {
	events, err := collectEvents(t, [][]byte{
		[]byte("data: {\"type\":\"progress\",\"scannedCount\":2}\n"),
		[]byte("data: {\"type\":\"done\",\"listi"),
	})
	if err != nil {
		t.Fatalf("truncated tail should not error, got %v", err)
	}
	if len(events) != 1 || events[0].Kind() != KindProgress {
		t.Fatalf("events = %v", events)
	}
}

// A complete but undecodable line is fatal, unlike a truncated tail.
func TestReaderMalformedLineIsFatal(t *testing.T) {
	events, err := collectEvents(t, [][]byte{
		[]byte("data: {\"type\":\"progress\",\"scannedCount\":2}\n"),
		[]byte("data: {broken\n"),
		[]byte("data: {\"type\":\"progress\",\"scannedCount\":3}\n"),
	})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events before the failure, want 1", len(events))
	}
}

// A recognized kind with a missing field is dropped; the stream continues.
func TestReaderSkipsDroppableEvents(t *testing.T) {
	events, err := collectEvents(t, [][]byte{
		[]byte("data: {\"type\":\"progress\"}\n"),
		[]byte("data: {\"type\":\"progress\",\"scannedCount\":9}\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if p := events[0].(ProgressEvent); p.ScannedCount != 9 {
		t.Fatalf("scannedCount = %d, want 9", p.ScannedCount)
	}
}

func TestReaderStopsOnErrStop(t *testing.T) {
	stream := &mockStream{chunks: [][]byte{
		[]byte("data: {\"type\":\"done\",\"listings\":[]}\ndata: {\"type\":\"progress\",\"scannedCount\":1}\n"),
	}}
	r := NewReader(stream, testLogger())

	var count int
	err := r.Run(context.Background(), func(ev Event) error {
		count++
		return ErrStop
	})
	if err != nil {
		t.Fatalf("ErrStop should map to nil, got %v", err)
	}
	if count != 1 {
		t.Fatalf("handler ran %d times, want 1", count)
	}
}

// Closing the body from another goroutine unblocks a pending read; with
// the context cancelled the result is ctx.Err, not a transport error.
func TestReaderUnblocksOnCancel(t *testing.T) {
	stream := newBlockingStream()
	r := NewReader(stream, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(Event) error { return nil })
	}()

	cancel()
	stream.Close()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not unblock after cancel")
	}
}

func TestReaderReportsTransportError(t *testing.T) {
	stream := newBlockingStream()
	r := NewReader(stream, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), func(Event) error { return nil })
	}()

	// Close without cancelling: the failure is a transport error.
	stream.Close()

	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want transport error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return after stream failure")
	}
}
