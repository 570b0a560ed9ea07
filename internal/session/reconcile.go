package session

import (
	"sort"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

// Pending derives the seen-but-unhandled view: listings observed by the
// producer whose identity has reached neither the evaluated nor the
// filtered-out channel, in first-observed order.
//
// Computed fresh on every call from the three authoritative collections,
// never cached, so it cannot drift. Membership checks go through sets:
// seen lists reach low hundreds of items and update on nearly every event.
func (s *State) Pending() []streaming.SeenListing {
	handled := make(map[string]struct{}, len(s.Listings)+len(s.FilteredOut))
	for _, l := range s.Listings {
		handled[l.ID()] = struct{}{}
	}
	for _, row := range s.FilteredOut {
		handled[row.ID()] = struct{}{}
	}

	var pending []streaming.SeenListing
	for _, seen := range s.Seen {
		if _, ok := handled[seen.ID()]; !ok {
			pending = append(pending, seen)
		}
	}
	return pending
}

// SortedFilteredOut returns the filtered-out rows most-recently-filtered
// first. Rows filtered after evaluation started (no comp price found)
// carry an offset rank, so they sort as a block above the rows pre-filtered
// for suspicious price; within each block recency still decides.
//
// The combined display ordering is evaluated listings in natural order
// followed by this slice.
func (s *State) SortedFilteredOut() []FilteredOutRow {
	rows := append([]FilteredOutRow(nil), s.FilteredOut...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].sortIndex > rows[j].sortIndex
	})
	return rows
}
