package debugtrace

import (
	"encoding/json"
	"testing"
)

// newTestAggregator returns an aggregator with a scripted clock advancing
// 100ms per call.
func newTestAggregator() (*Aggregator, *int64) {
	a := NewAggregator()
	now := int64(1000)
	a.now = func() int64 {
		now += 100
		return now
	}
	return a, &now
}

func TestTimelineProgression(t *testing.T) {
	a, _ := newTestAggregator()

	a.QueryStarted("u1", 3, "Trek 820")
	a.QueryGenerated("u1", "trek 820 mountain bike")
	a.QueryFinished("u1", false)

	entries := a.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ListingIndex != 3 || e.Title != "Trek 820" {
		t.Fatalf("entry = %+v", e)
	}
	if !(e.StartedAtMs < e.QueryGeneratedAtMs && e.QueryGeneratedAtMs < e.FinishedAtMs) {
		t.Fatalf("timestamps not monotonic: %d %d %d", e.StartedAtMs, e.QueryGeneratedAtMs, e.FinishedAtMs)
	}
	if e.GeneratedQuery != "trek 820 mountain bike" {
		t.Fatalf("query = %q", e.GeneratedQuery)
	}
	if !e.Finished() || e.Failed {
		t.Fatalf("finished/failed = %v/%v", e.Finished(), e.Failed)
	}
}

// Replayed events never move timestamps that are already set.
func TestReplayIsIdempotent(t *testing.T) {
	a, _ := newTestAggregator()

	a.QueryStarted("u1", 1, "A")
	a.QueryGenerated("u1", "first query")
	a.QueryFinished("u1", true)

	first := a.Entries()[0]

	a.QueryStarted("u1", 9, "B")
	a.QueryGenerated("u1", "second query")
	a.QueryFinished("u1", false)

	second := a.Entries()[0]
	if second.QueryGeneratedAtMs != first.QueryGeneratedAtMs || second.FinishedAtMs != first.FinishedAtMs {
		t.Fatal("replay moved timestamps")
	}
	if second.GeneratedQuery != "first query" {
		t.Fatalf("replay overwrote query: %q", second.GeneratedQuery)
	}
	if !second.Failed {
		t.Fatal("replay overwrote failed flag")
	}
	if second.ListingIndex != 1 || second.Title != "A" {
		t.Fatalf("replay overwrote identity fields: %+v", second)
	}
}

// Events can arrive for a listing never formally started; the entry is
// created on first sight.
func TestOutOfOrderCreatesEntry(t *testing.T) {
	a, _ := newTestAggregator()

	a.QueryGenerated("u1", "query")
	if a.Len() != 1 {
		t.Fatalf("len = %d, want 1", a.Len())
	}
	e := a.Entries()[0]
	if e.StartedAtMs == 0 || e.QueryGeneratedAtMs == 0 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestElapsedClampAndFreeze(t *testing.T) {
	e := &Entry{StartedAtMs: 1000}

	if got := e.Elapsed(1500); got != 500 {
		t.Fatalf("running elapsed = %d, want 500", got)
	}
	// A clock skew producing a negative duration displays as zero.
	if got := e.Elapsed(900); got != 0 {
		t.Fatalf("skewed elapsed = %d, want 0", got)
	}

	e.FinishedAtMs = 1800
	// Once finished, now is irrelevant.
	if got := e.Elapsed(99999); got != 800 {
		t.Fatalf("frozen elapsed = %d, want 800", got)
	}
}

func TestAttachRecon(t *testing.T) {
	a, _ := newTestAggregator()
	a.QueryStarted("u1", 1, "A")

	recon := json.RawMessage(`{"brand":"Trek"}`)
	a.AttachRecon("u1", recon)
	a.AttachRecon("u1", json.RawMessage(`{"brand":"Giant"}`))

	e := a.Entries()[0]
	if string(e.ProductRecon) != `{"brand":"Trek"}` {
		t.Fatalf("recon = %s", e.ProductRecon)
	}
}

func TestAttachNoCompReason(t *testing.T) {
	a, _ := newTestAggregator()

	// Without an entry the reason has nowhere to land.
	a.AttachNoCompReason("ghost", "no comps found")
	if a.Len() != 0 {
		t.Fatal("reason attach should not create entries")
	}

	a.QueryStarted("u1", 1, "A")
	a.QueryFinished("u1", true)
	a.AttachNoCompReason("u1", "no comps found")

	if e := a.Entries()[0]; e.NoCompReason != "no comps found" {
		t.Fatalf("reason = %q", e.NoCompReason)
	}
}

func TestEntriesOrderAndCopy(t *testing.T) {
	a, _ := newTestAggregator()
	a.QueryStarted("u2", 2, "B")
	a.QueryStarted("u1", 1, "A")

	entries := a.Entries()
	if entries[0].ListingID != "u2" || entries[1].ListingID != "u1" {
		t.Fatalf("order = %s, %s; want first-seen", entries[0].ListingID, entries[1].ListingID)
	}

	entries[0].Title = "mutated"
	if a.Entries()[0].Title != "B" {
		t.Fatal("Entries returned shared storage")
	}
}
