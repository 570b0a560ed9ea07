// Package session holds the authoritative state for one search run. State
// is mutated only by applying decoded stream events, on the run's single
// goroutine; everyone else reads snapshots.
package session

import (
	"time"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/debugtrace"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

// Phase is the coarse stage of a search run as seen by the UI.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScraping   Phase = "scraping"
	PhaseEvaluating Phase = "evaluating"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether no further events may change the run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseCancelled
}

// ErrorKind routes terminal errors to the right recovery flow: auth errors
// send the user to login setup, location errors back to the form field,
// everything else to the generic failure display.
type ErrorKind string

const (
	ErrorKindNone     ErrorKind = ""
	ErrorKindGeneric  ErrorKind = "generic"
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindLocation ErrorKind = "location"
)

// CurrentItem is the listing being evaluated right now, for live display.
type CurrentItem struct {
	ListingIndex  int    `json:"listingIndex"`
	Title         string `json:"title"`
	TotalListings int    `json:"totalListings"`
}

// FilteredOutRow is a filtered-out listing plus its recency rank. Rows
// filtered after evaluation started get an index offset so the two recency
// orders never interleave (see SortedFilteredOut).
type FilteredOutRow struct {
	streaming.FilteredListing

	sortIndex int
}

// InspectorLink is a side-channel URL the producer asked us to surface.
type InspectorLink struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// DebugLogLine is one diagnostic log line forwarded by the producer.
type DebugLogLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// maxDebugLogLines bounds the forwarded log buffer per run.
const maxDebugLogLines = 500

// postEvalFilterOffset is added to the recency index of listings filtered
// once evaluation has started, so they always sort above pre-filtered ones.
const postEvalFilterOffset = 1 << 20

// State is the authoritative record for one search run.
type State struct {
	SearchID  string
	Phase     Phase
	StartedAt time.Time

	ErrorKind    ErrorKind
	ErrorMessage string

	ScannedCount   int
	FilteredCount  int
	EvaluatedCount int

	// The three listing channels. An identity lives in at most one of
	// {Listings, FilteredOut}; Seen keeps everything ever observed and is
	// subtracted down to the pending view.
	Listings    []streaming.Listing
	FilteredOut []FilteredOutRow
	Seen        []streaming.SeenListing

	CurrentItem *CurrentItem

	DebugEnabled  bool
	LogsEnabled   bool
	InspectorURLs []InspectorLink
	DebugLogs     []DebugLogLine
	Trace         *debugtrace.Aggregator

	filteredSeq int
}

// New creates the state for a fresh run. An empty searchID denotes the
// idle pre-search state.
func New(searchID string) *State {
	return &State{
		SearchID:  searchID,
		Phase:     PhaseIdle,
		StartedAt: time.Now(),
		Trace:     debugtrace.NewAggregator(),
	}
}

// MarkCancelled forces the run into the cancelled phase. Idempotent, and
// allowed from any phase including terminal ones.
func (s *State) MarkCancelled() {
	s.Phase = PhaseCancelled
	s.CurrentItem = nil
}

// Snapshot is a deep, read-only copy of the state handed to the API layer
// and stream subscribers. FilteredOut comes pre-sorted by the combined
// display rule; Pending is the derived seen-minus-handled view.
type Snapshot struct {
	SearchID  string    `json:"searchId"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"startedAt"`

	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`

	ScannedCount   int `json:"scannedCount"`
	FilteredCount  int `json:"filteredCount"`
	EvaluatedCount int `json:"evaluatedCount"`

	Listings    []streaming.Listing         `json:"listings"`
	FilteredOut []streaming.FilteredListing `json:"filteredOut"`
	Pending     []streaming.SeenListing     `json:"pending"`

	CurrentItem *CurrentItem `json:"currentItem,omitempty"`

	DebugEnabled  bool              `json:"debugEnabled,omitempty"`
	LogsEnabled   bool              `json:"logsEnabled,omitempty"`
	InspectorURLs []InspectorLink   `json:"inspectorUrls,omitempty"`
	DebugLogs     []DebugLogLine    `json:"debugLogs,omitempty"`
	DebugEntries  []debugtrace.Entry `json:"debugEntries,omitempty"`
}

// Snapshot deep-copies the current state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		SearchID:       s.SearchID,
		Phase:          s.Phase,
		StartedAt:      s.StartedAt,
		ErrorKind:      s.ErrorKind,
		ErrorMessage:   s.ErrorMessage,
		ScannedCount:   s.ScannedCount,
		FilteredCount:  s.FilteredCount,
		EvaluatedCount: s.EvaluatedCount,
		Listings:       append([]streaming.Listing(nil), s.Listings...),
		Pending:        s.Pending(),
		DebugEnabled:   s.DebugEnabled,
		LogsEnabled:    s.LogsEnabled,
		InspectorURLs:  append([]InspectorLink(nil), s.InspectorURLs...),
		DebugLogs:      append([]DebugLogLine(nil), s.DebugLogs...),
	}

	for _, row := range s.SortedFilteredOut() {
		snap.FilteredOut = append(snap.FilteredOut, row.FilteredListing)
	}
	if s.CurrentItem != nil {
		item := *s.CurrentItem
		snap.CurrentItem = &item
	}
	if s.Trace != nil && s.Trace.Len() > 0 {
		snap.DebugEntries = s.Trace.Entries()
	}
	return snap
}
