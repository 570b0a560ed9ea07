package session

import (
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

// Apply folds one decoded event into the state and reports whether
// anything changed. Events arriving after a terminal phase are ignored;
// the stream should already be torn down by then, but the producer may
// still have lines in flight.
//
// The switch is exhaustive over the closed event set: a new event kind
// does not compile into the system without a case here.
func (s *State) Apply(event streaming.Event) bool {
	if s.Phase.Terminal() {
		return false
	}

	switch ev := event.(type) {
	case streaming.PhaseEvent:
		return s.applyPhase(ev)

	case streaming.ProgressEvent:
		// The producer's count is authoritative, no clamping.
		s.ScannedCount = ev.ScannedCount
		return true

	case streaming.FilteredCountEvent:
		s.FilteredCount = ev.FilteredCount
		return true

	case streaming.FilteredListingEvent:
		s.addFilteredOut(ev.Listing)
		return true

	case streaming.CurrentItemEvent:
		s.CurrentItem = &CurrentItem{
			ListingIndex:  ev.ListingIndex,
			Title:         ev.Title,
			TotalListings: ev.TotalListings,
		}
		return true

	case streaming.ListingResultEvent:
		s.EvaluatedCount = ev.EvaluatedCount
		s.upsertListing(ev.Listing)
		if ev.Listing.NoCompReason != "" {
			s.Trace.AttachNoCompReason(ev.Listing.ID(), ev.Listing.NoCompReason)
		}
		return true

	case streaming.ListingProcessedEvent:
		s.EvaluatedCount = ev.EvaluatedCount
		return true

	case streaming.DoneEvent:
		s.applyDone(ev)
		return true

	case streaming.AuthErrorEvent:
		s.applyTerminalError(ErrorKindAuth, "")
		return true

	case streaming.LocationErrorEvent:
		s.applyTerminalError(ErrorKindLocation, ev.Message)
		return true

	case streaming.DebugModeEvent:
		s.DebugEnabled = ev.Debug
		s.LogsEnabled = ev.LogsEnabled
		return true

	case streaming.DebugFacebookEvent:
		for _, listing := range ev.Listings {
			s.addSeen(listing)
		}
		return true

	case streaming.DebugFacebookListingEvent:
		s.addSeen(ev.Listing)
		return true

	case streaming.DebugQueryStartEvent:
		s.Trace.QueryStarted(ev.ListingID, ev.ListingIndex, ev.Title)
		return true

	case streaming.DebugQueryGeneratedEvent:
		s.Trace.QueryGenerated(ev.ListingID, ev.Query)
		return true

	case streaming.DebugQueryFinishedEvent:
		s.Trace.QueryFinished(ev.ListingID, ev.Failed)
		return true

	case streaming.DebugProductReconEvent:
		s.Trace.AttachRecon(ev.ListingID, ev.Recon)
		return true

	case streaming.DebugLogEvent:
		s.DebugLogs = append(s.DebugLogs, DebugLogLine{Level: ev.Level, Message: ev.Message})
		if len(s.DebugLogs) > maxDebugLogLines {
			s.DebugLogs = s.DebugLogs[len(s.DebugLogs)-maxDebugLogLines:]
		}
		return true

	case streaming.InspectorURLEvent:
		s.InspectorURLs = append(s.InspectorURLs, InspectorLink{URL: ev.URL, Source: ev.Source})
		return true
	}

	return false
}

func (s *State) applyPhase(ev streaming.PhaseEvent) bool {
	// Stage moves never reset counts.
	switch ev.Phase {
	case "scraping":
		s.Phase = PhaseScraping
	case "evaluating":
		s.Phase = PhaseEvaluating
	default:
		// Unknown producer stage, keep the current phase.
		return false
	}
	return true
}

// applyDone installs the terminal success payload. Done is the one event
// allowed to bulk-replace the listing collections, reconciling any drift
// the incremental events accumulated.
func (s *State) applyDone(ev streaming.DoneEvent) {
	s.Phase = PhaseDone
	s.CurrentItem = nil
	s.Listings = append([]streaming.Listing(nil), ev.Listings...)

	// The final listings own their identities: any filtered-out row with
	// the same id is dropped, whether it came from the done payload itself
	// (a producer contradiction) or from the incremental events.
	evaluated := make(map[string]struct{}, len(s.Listings))
	for _, l := range s.Listings {
		evaluated[l.ID()] = struct{}{}
	}

	if ev.FilteredOut != nil {
		s.FilteredOut = s.FilteredOut[:0]
		s.filteredSeq = 0
		for _, listing := range ev.FilteredOut {
			if _, taken := evaluated[listing.ID()]; taken {
				continue
			}
			s.filteredSeq++
			s.FilteredOut = append(s.FilteredOut, FilteredOutRow{
				FilteredListing: listing,
				sortIndex:       s.filteredSeq,
			})
		}
	} else {
		// No authoritative filtered-out payload: keep the incremental rows
		// minus the claimed identities.
		kept := s.FilteredOut[:0]
		for _, row := range s.FilteredOut {
			if _, taken := evaluated[row.ID()]; !taken {
				kept = append(kept, row)
			}
		}
		s.FilteredOut = kept
	}

	if ev.ScannedCount != nil {
		s.ScannedCount = *ev.ScannedCount
	}
	if ev.FilteredCount != nil {
		s.FilteredCount = *ev.FilteredCount
	}
	if ev.EvaluatedCount != nil {
		s.EvaluatedCount = *ev.EvaluatedCount
	}
}

// applyTerminalError handles the producer's recoverable terminal errors.
// Counts reset so the form starts clean after the user fixes the cause.
func (s *State) applyTerminalError(kind ErrorKind, message string) {
	s.Phase = PhaseError
	s.ErrorKind = kind
	s.ErrorMessage = message
	s.ScannedCount = 0
	s.FilteredCount = 0
	s.EvaluatedCount = 0
	s.CurrentItem = nil
}

// upsertListing appends an evaluated listing or replaces an existing record
// with the same identity (replace, never merge). The identity is also
// removed from the filtered-out channel: the later event is authoritative.
func (s *State) upsertListing(listing streaming.Listing) {
	id := listing.ID()
	replaced := false
	for i := range s.Listings {
		if s.Listings[i].ID() == id {
			s.Listings[i] = listing
			replaced = true
			break
		}
	}
	if !replaced {
		s.Listings = append(s.Listings, listing)
	}
	s.removeFilteredOut(id)
}

// addFilteredOut records a filtered-out listing, evicting the same identity
// from the evaluated channel if a later filter verdict contradicts an
// earlier result. Re-filtering an already-filtered identity refreshes the
// row but keeps its original recency rank.
func (s *State) addFilteredOut(listing streaming.FilteredListing) {
	id := listing.ID()
	for i := range s.FilteredOut {
		if s.FilteredOut[i].ID() == id {
			s.FilteredOut[i].FilteredListing = listing
			return
		}
	}

	s.filteredSeq++
	index := s.filteredSeq
	if s.Phase == PhaseEvaluating {
		index += postEvalFilterOffset
	}
	s.FilteredOut = append(s.FilteredOut, FilteredOutRow{
		FilteredListing: listing,
		sortIndex:       index,
	})
	s.removeListing(id)
}

func (s *State) removeFilteredOut(id string) {
	for i := range s.FilteredOut {
		if s.FilteredOut[i].ID() == id {
			s.FilteredOut = append(s.FilteredOut[:i], s.FilteredOut[i+1:]...)
			return
		}
	}
}

func (s *State) removeListing(id string) {
	for i := range s.Listings {
		if s.Listings[i].ID() == id {
			s.Listings = append(s.Listings[:i], s.Listings[i+1:]...)
			return
		}
	}
}

// addSeen records a raw observed listing, preserving first-observed order.
// A listing the producer already marked filtered lands in the filtered-out
// channel too, so it never shows as pending.
func (s *State) addSeen(listing streaming.SeenListing) {
	for i := range s.Seen {
		if s.Seen[i].ID() == listing.ID() {
			return
		}
	}
	s.Seen = append(s.Seen, listing)

	if listing.Filtered {
		s.addFilteredOut(streaming.FilteredListing{
			Title:    listing.Title,
			Price:    listing.Price,
			Location: listing.Location,
			URL:      listing.URL,
		})
	}
}
