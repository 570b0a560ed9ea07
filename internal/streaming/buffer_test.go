package streaming

import (
	"reflect"
	"testing"
)

func TestChunkBufferSingleChunk(t *testing.T) {
	var b ChunkBuffer

	lines := b.Push([]byte("data: {\"type\":\"progress\"}\ndata: {\"type\":\"phase\"}\n"), false)
	want := []string{`data: {"type":"progress"}`, `data: {"type":"phase"}`}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("got %v, want %v", lines, want)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected empty buffer, %d bytes pending", b.Pending())
	}
}

// The reassembled lines must not depend on where the network split the
// stream. Push the same payload one byte at a time and in odd-sized pieces
// and expect identical output.
func TestChunkBufferSplitInvariance(t *testing.T) {
	payload := "data: {\"type\":\"progress\",\"scannedCount\":3}\r\ndata: {\"type\":\"filtered\",\"filteredCount\":1}\n"
	want := []string{
		`data: {"type":"progress","scannedCount":3}`,
		`data: {"type":"filtered","filteredCount":1}`,
	}

	for _, size := range []int{1, 2, 3, 7, 17, len(payload)} {
		var b ChunkBuffer
		var got []string
		for i := 0; i < len(payload); i += size {
			end := i + size
			if end > len(payload) {
				end = len(payload)
			}
			got = append(got, b.Push([]byte(payload[i:end]), false)...)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: got %v, want %v", size, got, want)
		}
	}
}

// A chunk boundary inside a multi-byte rune must not corrupt the line.
func TestChunkBufferSplitMidRune(t *testing.T) {
	line := "data: {\"title\":\"Kühlschrank – 50€\"}"
	raw := []byte(line + "\n")

	// Split inside the two-byte ü sequence.
	cut := -1
	for i, c := range raw {
		if c == 0xc3 { // first byte of ü
			cut = i + 1
			break
		}
	}
	if cut < 0 {
		t.Fatal("no multi-byte rune found in fixture")
	}

	var b ChunkBuffer
	if lines := b.Push(raw[:cut], false); len(lines) != 0 {
		t.Fatalf("unexpected lines before newline: %v", lines)
	}
	lines := b.Push(raw[cut:], false)
	if len(lines) != 1 || lines[0] != line {
		t.Fatalf("got %q, want %q", lines, line)
	}
}

func TestChunkBufferFinalFlushesFragment(t *testing.T) {
	var b ChunkBuffer

	b.Push([]byte("data: {\"type\":\"done\""), false)
	if b.Pending() == 0 {
		t.Fatal("fragment should stay buffered without a newline")
	}

	lines := b.Push(nil, true)
	if len(lines) != 1 || lines[0] != `data: {"type":"done"` {
		t.Fatalf("final flush got %v", lines)
	}
	if b.Pending() != 0 {
		t.Fatalf("buffer not drained after final flush")
	}
}

func TestChunkBufferFinalWithoutFragment(t *testing.T) {
	var b ChunkBuffer
	b.Push([]byte("data: {}\n"), false)
	if lines := b.Push(nil, true); len(lines) != 0 {
		t.Fatalf("expected no lines on final flush, got %v", lines)
	}
}
