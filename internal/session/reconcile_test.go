package session

import (
	"testing"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

func TestPendingIsSeenMinusHandled(t *testing.T) {
	s := New("s1")
	s.Apply(streaming.DebugFacebookEvent{Listings: []streaming.SeenListing{
		seen("u1"), seen("u2"), seen("u3"), seen("u4"),
	}})

	s.Apply(streaming.ListingResultEvent{Listing: listing("u2", 30), EvaluatedCount: 1})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u4", "no comps")})

	pending := s.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	// First-observed order survives.
	if pending[0].ID() != "u1" || pending[1].ID() != "u3" {
		t.Fatalf("pending order = %s, %s", pending[0].ID(), pending[1].ID())
	}
}

// Every seen identity is in exactly one of evaluated, filtered-out, pending.
func TestPartitionInvariant(t *testing.T) {
	s := New("s1")
	urls := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range urls {
		s.Apply(streaming.DebugFacebookListingEvent{Listing: seen(u)})
	}
	s.Apply(streaming.ListingResultEvent{Listing: listing("u1", 30), EvaluatedCount: 1})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u2", "r")})
	// Contradicting verdicts on u3.
	s.Apply(streaming.ListingResultEvent{Listing: listing("u3", 20), EvaluatedCount: 2})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u3", "r")})

	snap := s.Snapshot()
	membership := make(map[string]int)
	for _, l := range snap.Listings {
		membership[l.ID()]++
	}
	for _, l := range snap.FilteredOut {
		membership[l.ID()]++
	}
	for _, l := range snap.Pending {
		membership[l.ID()]++
	}

	for _, u := range urls {
		if membership[u] != 1 {
			t.Errorf("%s appears in %d channels, want exactly 1", u, membership[u])
		}
	}
}

func TestSortedFilteredOutRecency(t *testing.T) {
	s := New("s1")
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u1", "low price")})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u2", "low price")})

	rows := s.SortedFilteredOut()
	if rows[0].ID() != "u2" || rows[1].ID() != "u1" {
		t.Fatalf("order = %s, %s; want most recent first", rows[0].ID(), rows[1].ID())
	}
}

// Rows filtered after evaluation started sort as a block above rows
// pre-filtered during scraping, regardless of arrival interleaving.
func TestSortedFilteredOutPostEvalBlock(t *testing.T) {
	s := New("s1")
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("pre1", "low price")})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("pre2", "low price")})

	s.Apply(streaming.PhaseEvent{Phase: "evaluating"})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("post1", "no comps")})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("post2", "no comps")})

	rows := s.SortedFilteredOut()
	got := []string{rows[0].ID(), rows[1].ID(), rows[2].ID(), rows[3].ID()}
	want := []string{"post2", "post1", "pre2", "pre1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// Re-filtering the same identity refreshes the row without promoting it.
func TestRefilterKeepsRank(t *testing.T) {
	s := New("s1")
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u1", "low price")})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u2", "low price")})
	s.Apply(streaming.FilteredListingEvent{Listing: filtered("u1", "updated reason")})

	rows := s.SortedFilteredOut()
	if rows[0].ID() != "u2" {
		t.Fatalf("re-filter promoted the row: order %s, %s", rows[0].ID(), rows[1].ID())
	}
	if rows[1].FilterReason != "updated reason" {
		t.Fatalf("re-filter did not refresh the row: %+v", rows[1])
	}
}
