package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DataPrefix marks stream lines that carry an event payload. Lines without
// it (blank keep-alives, comments) are skipped.
const DataPrefix = "data: "

// EventKind discriminates the event types the producer emits.
type EventKind string

const (
	KindPhase            EventKind = "phase"
	KindProgress         EventKind = "progress"
	KindFilteredCount    EventKind = "filtered"
	KindFilteredListing  EventKind = "filtered_facebook_listing"
	KindCurrentItem      EventKind = "current_item"
	KindListingResult    EventKind = "listing_result"
	KindListingProcessed EventKind = "listing_processed"
	KindDone             EventKind = "done"
	KindAuthError        EventKind = "auth_error"
	KindLocationError    EventKind = "location_error"
	KindDebugMode        EventKind = "debug_mode"
	KindDebugFacebook    EventKind = "debug_facebook"
	KindDebugFBListing   EventKind = "debug_facebook_listing"
	KindDebugQueryStart  EventKind = "debug_ebay_query_start"
	KindDebugQueryGen    EventKind = "debug_ebay_query_generated"
	KindDebugQueryDone   EventKind = "debug_ebay_query_finished"
	KindDebugProductRec  EventKind = "debug_product_recon"
	KindDebugLog         EventKind = "debug_log"
	KindInspectorURL     EventKind = "inspector_url"
)

// Event is the closed set of decoded stream events. Adding a kind means
// adding a struct here, a decode case in Decode, and a dispatch case in
// the session apply switch.
type Event interface {
	Kind() EventKind
}

// PhaseEvent: the producer's pipeline entered a new stage.
type PhaseEvent struct {
	Phase string
}

// ProgressEvent: listings observed so far. The producer's count is
// authoritative and applied as-is, even if it moves backward.
type ProgressEvent struct {
	ScannedCount int
}

// FilteredCountEvent: listings excluded pre-evaluation so far.
type FilteredCountEvent struct {
	FilteredCount int
}

// FilteredListingEvent: one pre-evaluation exclusion, with reason.
type FilteredListingEvent struct {
	Listing FilteredListing
}

// CurrentItemEvent: the item currently being evaluated, for live display.
type CurrentItemEvent struct {
	ListingIndex  int
	Title         string
	TotalListings int
}

// ListingResultEvent: one evaluated result, appended incrementally.
type ListingResultEvent struct {
	Listing        Listing
	EvaluatedCount int
}

// ListingProcessedEvent: count-only tick for a listing that produced no
// result record.
type ListingProcessedEvent struct {
	EvaluatedCount int
	CurrentListing string
}

// DoneEvent: terminal success. Its collections are authoritative and
// replace whatever the incremental events built up.
type DoneEvent struct {
	Listings       []Listing
	FilteredOut    []FilteredListing
	ScannedCount   *int
	FilteredCount  *int
	EvaluatedCount *int
	Threshold      float64
}

// AuthErrorEvent: the producer's marketplace session expired.
type AuthErrorEvent struct{}

// LocationErrorEvent: the supplied location could not be resolved.
type LocationErrorEvent struct {
	Message string
}

// DebugModeEvent: diagnostic mode flag for this run.
type DebugModeEvent struct {
	Debug       bool
	LogsEnabled bool
}

// DebugFacebookEvent: raw scraped records, bulk (debug only).
type DebugFacebookEvent struct {
	Listings []SeenListing
}

// DebugFacebookListingEvent: one raw scraped record (debug only).
type DebugFacebookListingEvent struct {
	Listing SeenListing
}

// DebugQueryStartEvent: query generation started for one listing.
type DebugQueryStartEvent struct {
	ListingID    string
	ListingIndex int
	Title        string
}

// DebugQueryGeneratedEvent: the comp search query was generated.
type DebugQueryGeneratedEvent struct {
	ListingID string
	Query     string
}

// DebugQueryFinishedEvent: comp lookup finished for one listing.
type DebugQueryFinishedEvent struct {
	ListingID string
	Failed    bool
}

// DebugProductReconEvent: structured product-identification detail.
type DebugProductReconEvent struct {
	ListingID string
	Recon     json.RawMessage
}

// DebugLogEvent: free-text diagnostic line from the producer.
type DebugLogEvent struct {
	Level   string
	Message string
}

// InspectorURLEvent: side-channel link to open for manual inspection.
type InspectorURLEvent struct {
	URL    string
	Source string
}

func (PhaseEvent) Kind() EventKind                { return KindPhase }
func (ProgressEvent) Kind() EventKind             { return KindProgress }
func (FilteredCountEvent) Kind() EventKind        { return KindFilteredCount }
func (FilteredListingEvent) Kind() EventKind      { return KindFilteredListing }
func (CurrentItemEvent) Kind() EventKind          { return KindCurrentItem }
func (ListingResultEvent) Kind() EventKind        { return KindListingResult }
func (ListingProcessedEvent) Kind() EventKind     { return KindListingProcessed }
func (DoneEvent) Kind() EventKind                 { return KindDone }
func (AuthErrorEvent) Kind() EventKind            { return KindAuthError }
func (LocationErrorEvent) Kind() EventKind        { return KindLocationError }
func (DebugModeEvent) Kind() EventKind            { return KindDebugMode }
func (DebugFacebookEvent) Kind() EventKind        { return KindDebugFacebook }
func (DebugFacebookListingEvent) Kind() EventKind { return KindDebugFBListing }
func (DebugQueryStartEvent) Kind() EventKind      { return KindDebugQueryStart }
func (DebugQueryGeneratedEvent) Kind() EventKind  { return KindDebugQueryGen }
func (DebugQueryFinishedEvent) Kind() EventKind   { return KindDebugQueryDone }
func (DebugProductReconEvent) Kind() EventKind    { return KindDebugProductRec }
func (DebugLogEvent) Kind() EventKind             { return KindDebugLog }
func (InspectorURLEvent) Kind() EventKind         { return KindInspectorURL }

// ParseError reports a data line whose payload is not valid JSON or lacks a
// type field. Fatal to the run: a corrupted done payload cannot be salvaged,
// so the caller aborts the stream rather than skipping the line.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("streaming: undecodable event line: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldError reports a recognized event kind missing a required field.
// Non-fatal: the event is dropped with no state change so a single
// producer bug does not kill the whole session.
type FieldError struct {
	EventKind EventKind
	Field     string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("streaming: %s event missing required field %q", e.EventKind, e.Field)
}

var errNoType = errors.New("payload has no type field")

// Decode parses one stream line into an event.
//
// Returns (nil, nil) for lines to skip silently: lines without the data
// prefix and events of unrecognized kinds. Returns *ParseError for payloads
// that are not JSON or carry no type (fatal). Returns *FieldError for
// recognized kinds missing required fields (droppable).
func Decode(line string) (Event, error) {
	if !strings.HasPrefix(line, DataPrefix) {
		return nil, nil
	}
	payload := []byte(strings.TrimPrefix(line, DataPrefix))

	var env struct {
		Type EventKind `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}
	if env.Type == "" {
		return nil, &ParseError{Line: line, Err: errNoType}
	}

	switch env.Type {
	case KindPhase:
		return decodePhase(payload)
	case KindProgress:
		return decodeProgress(payload)
	case KindFilteredCount:
		return decodeFilteredCount(payload)
	case KindFilteredListing:
		return decodeFilteredListing(payload)
	case KindCurrentItem:
		return decodeCurrentItem(payload)
	case KindListingResult:
		return decodeListingResult(payload)
	case KindListingProcessed:
		return decodeListingProcessed(payload)
	case KindDone:
		return decodeDone(payload)
	case KindAuthError:
		return AuthErrorEvent{}, nil
	case KindLocationError:
		return decodeLocationError(payload)
	case KindDebugMode:
		return decodeDebugMode(payload)
	case KindDebugFacebook:
		return decodeDebugFacebook(payload)
	case KindDebugFBListing:
		return decodeDebugFacebookListing(payload)
	case KindDebugQueryStart:
		return decodeDebugQueryStart(payload)
	case KindDebugQueryGen:
		return decodeDebugQueryGenerated(payload)
	case KindDebugQueryDone:
		return decodeDebugQueryFinished(payload)
	case KindDebugProductRec:
		return decodeDebugProductRecon(payload)
	case KindDebugLog:
		return decodeDebugLog(payload)
	case KindInspectorURL:
		return decodeInspectorURL(payload)
	default:
		// Unknown kind: ignore for forward compatibility with producer additions.
		return nil, nil
	}
}

func decodePhase(payload []byte) (Event, error) {
	var w struct {
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Phase == "" {
		return nil, &FieldError{EventKind: KindPhase, Field: "phase"}
	}
	return PhaseEvent{Phase: w.Phase}, nil
}

func decodeProgress(payload []byte) (Event, error) {
	var w struct {
		ScannedCount *int `json:"scannedCount"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ScannedCount == nil {
		return nil, &FieldError{EventKind: KindProgress, Field: "scannedCount"}
	}
	return ProgressEvent{ScannedCount: *w.ScannedCount}, nil
}

func decodeFilteredCount(payload []byte) (Event, error) {
	var w struct {
		FilteredCount *int `json:"filteredCount"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.FilteredCount == nil {
		return nil, &FieldError{EventKind: KindFilteredCount, Field: "filteredCount"}
	}
	return FilteredCountEvent{FilteredCount: *w.FilteredCount}, nil
}

func decodeFilteredListing(payload []byte) (Event, error) {
	var w struct {
		Listing *FilteredListing `json:"listing"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Listing == nil {
		return nil, &FieldError{EventKind: KindFilteredListing, Field: "listing"}
	}
	return FilteredListingEvent{Listing: *w.Listing}, nil
}

func decodeCurrentItem(payload []byte) (Event, error) {
	var w struct {
		ListingIndex  *int   `json:"listingIndex"`
		Title         string `json:"fbTitle"`
		TotalListings *int   `json:"totalListings"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ListingIndex == nil {
		return nil, &FieldError{EventKind: KindCurrentItem, Field: "listingIndex"}
	}
	if w.Title == "" {
		return nil, &FieldError{EventKind: KindCurrentItem, Field: "fbTitle"}
	}
	if w.TotalListings == nil {
		return nil, &FieldError{EventKind: KindCurrentItem, Field: "totalListings"}
	}
	return CurrentItemEvent{ListingIndex: *w.ListingIndex, Title: w.Title, TotalListings: *w.TotalListings}, nil
}

func decodeListingResult(payload []byte) (Event, error) {
	var w struct {
		Listing        *Listing `json:"listing"`
		EvaluatedCount *int     `json:"evaluatedCount"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Listing == nil {
		return nil, &FieldError{EventKind: KindListingResult, Field: "listing"}
	}
	if w.EvaluatedCount == nil {
		return nil, &FieldError{EventKind: KindListingResult, Field: "evaluatedCount"}
	}
	return ListingResultEvent{Listing: *w.Listing, EvaluatedCount: *w.EvaluatedCount}, nil
}

func decodeListingProcessed(payload []byte) (Event, error) {
	var w struct {
		EvaluatedCount *int   `json:"evaluatedCount"`
		CurrentListing string `json:"currentListing"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.EvaluatedCount == nil {
		return nil, &FieldError{EventKind: KindListingProcessed, Field: "evaluatedCount"}
	}
	return ListingProcessedEvent{EvaluatedCount: *w.EvaluatedCount, CurrentListing: w.CurrentListing}, nil
}

func decodeDone(payload []byte) (Event, error) {
	var w struct {
		Listings       *[]Listing        `json:"listings"`
		FilteredOut    []FilteredListing `json:"filteredOut"`
		ScannedCount   *int              `json:"scannedCount"`
		FilteredCount  *int              `json:"filteredCount"`
		EvaluatedCount *int              `json:"evaluatedCount"`
		Threshold      float64           `json:"threshold"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Listings == nil {
		return nil, &FieldError{EventKind: KindDone, Field: "listings"}
	}
	return DoneEvent{
		Listings:       *w.Listings,
		FilteredOut:    w.FilteredOut,
		ScannedCount:   w.ScannedCount,
		FilteredCount:  w.FilteredCount,
		EvaluatedCount: w.EvaluatedCount,
		Threshold:      w.Threshold,
	}, nil
}

func decodeLocationError(payload []byte) (Event, error) {
	var w struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Message == "" {
		return nil, &FieldError{EventKind: KindLocationError, Field: "message"}
	}
	return LocationErrorEvent{Message: w.Message}, nil
}

func decodeDebugMode(payload []byte) (Event, error) {
	var w struct {
		Debug       *bool `json:"debug"`
		LogsEnabled bool  `json:"logsEnabled"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Debug == nil {
		return nil, &FieldError{EventKind: KindDebugMode, Field: "debug"}
	}
	return DebugModeEvent{Debug: *w.Debug, LogsEnabled: w.LogsEnabled}, nil
}

func decodeDebugFacebook(payload []byte) (Event, error) {
	var w struct {
		Listings *[]SeenListing `json:"listings"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Listings == nil {
		return nil, &FieldError{EventKind: KindDebugFacebook, Field: "listings"}
	}
	return DebugFacebookEvent{Listings: *w.Listings}, nil
}

func decodeDebugFacebookListing(payload []byte) (Event, error) {
	var w struct {
		Listing *SeenListing `json:"listing"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Listing == nil {
		return nil, &FieldError{EventKind: KindDebugFBListing, Field: "listing"}
	}
	return DebugFacebookListingEvent{Listing: *w.Listing}, nil
}

func decodeDebugQueryStart(payload []byte) (Event, error) {
	var w struct {
		ListingID    string `json:"listingId"`
		ListingIndex int    `json:"listingIndex"`
		Title        string `json:"fbTitle"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ListingID == "" {
		return nil, &FieldError{EventKind: KindDebugQueryStart, Field: "listingId"}
	}
	if w.Title == "" {
		return nil, &FieldError{EventKind: KindDebugQueryStart, Field: "fbTitle"}
	}
	return DebugQueryStartEvent{ListingID: w.ListingID, ListingIndex: w.ListingIndex, Title: w.Title}, nil
}

func decodeDebugQueryGenerated(payload []byte) (Event, error) {
	var w struct {
		ListingID string `json:"listingId"`
		Query     string `json:"ebayQuery"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ListingID == "" {
		return nil, &FieldError{EventKind: KindDebugQueryGen, Field: "listingId"}
	}
	if w.Query == "" {
		return nil, &FieldError{EventKind: KindDebugQueryGen, Field: "ebayQuery"}
	}
	return DebugQueryGeneratedEvent{ListingID: w.ListingID, Query: w.Query}, nil
}

func decodeDebugQueryFinished(payload []byte) (Event, error) {
	var w struct {
		ListingID string `json:"listingId"`
		Failed    bool   `json:"failed"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ListingID == "" {
		return nil, &FieldError{EventKind: KindDebugQueryDone, Field: "listingId"}
	}
	return DebugQueryFinishedEvent{ListingID: w.ListingID, Failed: w.Failed}, nil
}

func decodeDebugProductRecon(payload []byte) (Event, error) {
	var w struct {
		ListingID string          `json:"listingId"`
		Recon     json.RawMessage `json:"recon"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.ListingID == "" {
		return nil, &FieldError{EventKind: KindDebugProductRec, Field: "listingId"}
	}
	if len(w.Recon) == 0 {
		return nil, &FieldError{EventKind: KindDebugProductRec, Field: "recon"}
	}
	return DebugProductReconEvent{ListingID: w.ListingID, Recon: w.Recon}, nil
}

func decodeDebugLog(payload []byte) (Event, error) {
	var w struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.Level == "" {
		return nil, &FieldError{EventKind: KindDebugLog, Field: "level"}
	}
	if w.Message == "" {
		return nil, &FieldError{EventKind: KindDebugLog, Field: "message"}
	}
	return DebugLogEvent{Level: w.Level, Message: w.Message}, nil
}

func decodeInspectorURL(payload []byte) (Event, error) {
	var w struct {
		URL    string `json:"url"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(payload, &w); err != nil || w.URL == "" {
		return nil, &FieldError{EventKind: KindInspectorURL, Field: "url"}
	}
	return InspectorURLEvent{URL: w.URL, Source: w.Source}, nil
}
