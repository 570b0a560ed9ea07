package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
)

// readChunkSize is the buffer handed to each network read. Chunks can be
// any size; the ChunkBuffer handles reassembly.
const readChunkSize = 32 * 1024

// ErrStop is returned by an event handler to end the read loop early
// without reporting an error, typically once the session reached a
// terminal state.
var ErrStop = errors.New("streaming: stop")

// Handler receives decoded events in line arrival order.
type Handler func(Event) error

// Reader drives one search stream: it pulls raw chunks from the response
// body, reassembles lines, decodes events and hands them to a handler.
// One Reader per search run; not safe for concurrent use.
type Reader struct {
	body   io.ReadCloser
	buf    ChunkBuffer
	logger *logger.Logger
}

// NewReader wraps a stream body. The caller keeps ownership of the body:
// closing it from another goroutine is the supported way to interrupt a
// blocked read during cancellation.
func NewReader(body io.ReadCloser, log *logger.Logger) *Reader {
	return &Reader{body: body, logger: log}
}

// Run reads the stream to completion, dispatching every decoded event to
// handle in arrival order.
//
// Returns nil on a clean end of stream or when handle returns ErrStop.
// Returns ctx.Err() when the context was cancelled, a *ParseError when a
// data line cannot be decoded, any other handler error verbatim, and a
// wrapped transport error otherwise. Droppable decode failures
// (*FieldError) are logged and skipped, as is a trailing fragment the
// stream ended in the middle of.
func (r *Reader) Run(ctx context.Context, handle Handler) error {
	chunk := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := r.body.Read(chunk)

		if n > 0 {
			if err := r.dispatch(r.buf.Push(chunk[:n], false), handle); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return r.flushFragment(handle)
		}
		// A close from the cancellation path surfaces as a read error;
		// report it as cancellation, not as a transport failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("streaming: read stream: %w", readErr)
	}
}

// flushFragment handles whatever is left in the buffer when the stream
// ends without a final newline. The fragment may be an event the producer
// was cut off in the middle of, so a parse failure here is discarded
// rather than fatal.
func (r *Reader) flushFragment(handle Handler) error {
	if r.buf.Pending() == 0 {
		return nil
	}
	err := r.dispatch(r.buf.Push(nil, true), handle)
	if err == nil || errors.Is(err, ErrStop) {
		return nil
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		r.logger.Debug("discarding undecodable trailing fragment",
			slog.Int("bytes", len(parseErr.Line)))
		return nil
	}
	return err
}

func (r *Reader) dispatch(lines []string, handle Handler) error {
	for _, line := range lines {
		event, err := Decode(line)
		if err != nil {
			var fieldErr *FieldError
			if errors.As(err, &fieldErr) {
				r.logger.Warn("dropping event with missing field",
					slog.String("kind", string(fieldErr.EventKind)),
					slog.String("field", fieldErr.Field))
				continue
			}
			return err
		}
		if event == nil {
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
	return nil
}
