// Package debugtrace tracks per-listing diagnostic timelines for a search
// run in debug mode: when comp query generation started, when the query was
// produced, and when the comp lookup finished. Entries are keyed by the
// producer-assigned listing id, not by list position, because the same
// logical listing can appear at different indices across incremental
// updates.
package debugtrace

import (
	"encoding/json"
	"time"
)

// Entry is the diagnostic record for one listing. Timestamp fields fill in
// monotonically: once set they never move, so replaying an event is a no-op.
type Entry struct {
	ListingID    string `json:"listingId"`
	ListingIndex int    `json:"listingIndex"`
	Title        string `json:"title"`

	StartedAtMs        int64 `json:"startedAtMs"`
	QueryGeneratedAtMs int64 `json:"queryGeneratedAtMs,omitempty"`
	FinishedAtMs       int64 `json:"finishedAtMs,omitempty"`

	Failed         bool            `json:"failed,omitempty"`
	GeneratedQuery string          `json:"generatedQuery,omitempty"`
	ProductRecon   json.RawMessage `json:"productRecon,omitempty"`

	// NoCompReason arrives with the completion event, possibly after the
	// entry is already terminal.
	NoCompReason string `json:"noCompReason,omitempty"`
}

// Finished reports whether the entry's timeline is terminal.
func (e *Entry) Finished() bool { return e.FinishedAtMs != 0 }

// Elapsed returns the entry's running or final duration in milliseconds,
// clamped to zero for display. Once FinishedAtMs is set the value no longer
// depends on nowMs.
func (e *Entry) Elapsed(nowMs int64) int64 {
	end := e.FinishedAtMs
	if end == 0 {
		end = nowMs
	}
	if d := end - e.StartedAtMs; d > 0 {
		return d
	}
	return 0
}

// Aggregator collects entries for one search run. Not safe for concurrent
// use; the session owner serializes access.
type Aggregator struct {
	entries map[string]*Entry
	order   []string

	// now is swappable for tests.
	now func() int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		entries: make(map[string]*Entry),
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// upsert returns the entry for id, creating it on first sight.
func (a *Aggregator) upsert(id string) *Entry {
	if e, ok := a.entries[id]; ok {
		return e
	}
	e := &Entry{ListingID: id, StartedAtMs: a.now()}
	a.entries[id] = e
	a.order = append(a.order, id)
	return e
}

// QueryStarted records the beginning of query generation for a listing.
// Idempotent: a replayed start never rewinds StartedAtMs.
func (a *Aggregator) QueryStarted(id string, index int, title string) {
	e := a.upsert(id)
	if e.ListingIndex == 0 {
		e.ListingIndex = index
	}
	if e.Title == "" {
		e.Title = title
	}
}

// QueryGenerated records the generated comp query. The timestamp and text
// are set once; later duplicates are ignored.
func (a *Aggregator) QueryGenerated(id, query string) {
	e := a.upsert(id)
	if e.QueryGeneratedAtMs == 0 {
		e.QueryGeneratedAtMs = a.now()
		e.GeneratedQuery = query
	}
}

// QueryFinished marks the entry terminal. The first call wins.
func (a *Aggregator) QueryFinished(id string, failed bool) {
	e := a.upsert(id)
	if e.FinishedAtMs == 0 {
		e.FinishedAtMs = a.now()
		e.Failed = failed
	}
}

// AttachRecon stores the product-identification detail for a listing.
func (a *Aggregator) AttachRecon(id string, recon json.RawMessage) {
	e := a.upsert(id)
	if len(e.ProductRecon) == 0 {
		e.ProductRecon = recon
	}
}

// AttachNoCompReason records why no comp price was found. This can land
// after the entry is terminal, which is the one mutation still allowed then.
func (a *Aggregator) AttachNoCompReason(id, reason string) {
	if e, ok := a.entries[id]; ok && e.NoCompReason == "" {
		e.NoCompReason = reason
	}
}

// Entries returns copies of all entries in first-seen order.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.entries[id])
	}
	return out
}

// Len returns the number of tracked listings.
func (a *Aggregator) Len() int { return len(a.entries) }
