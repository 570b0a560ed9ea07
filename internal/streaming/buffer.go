package streaming

import (
	"bytes"
	"strings"
)

// ChunkBuffer reassembles newline-delimited lines out of arbitrarily split
// network chunks. A single JSON payload can span many chunks, and a chunk
// boundary can fall anywhere, including inside a multi-byte UTF-8 sequence.
// The buffer therefore splits on '\n' only (a byte that never occurs inside
// a UTF-8 continuation) and converts to string per complete line, so split
// runes are reassembled before any decoding happens.
type ChunkBuffer struct {
	buf []byte
}

// Push appends a raw network chunk and returns every complete line now
// available. The trailing fragment after the last newline stays buffered
// for the next call, unless final is true, in which case it is flushed as
// a last, possibly incomplete line that downstream must tolerate failing
// to parse. A trailing '\r' is stripped from each returned line.
func (b *ChunkBuffer) Push(chunk []byte, final bool) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(b.buf[:i]), "\r"))
		b.buf = b.buf[i+1:]
	}

	if final && len(b.buf) > 0 {
		lines = append(lines, strings.TrimSuffix(string(b.buf), "\r"))
		b.buf = nil
	}

	return lines
}

// Pending returns the number of buffered bytes not yet returned as a line.
func (b *ChunkBuffer) Pending() int {
	return len(b.buf)
}
