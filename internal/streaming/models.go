package streaming

// Wire models for listing payloads carried by stream events. Field names
// match the producer's JSON exactly. A listing's URL doubles as its stable
// identity across the seen / evaluated / filtered-out channels.

// CompFilterStatus classifies a comp item's relevance as judged by the
// producer's result filter.
type CompFilterStatus string

const (
	CompAccept CompFilterStatus = "accept"
	CompMaybe  CompFilterStatus = "maybe"
	CompReject CompFilterStatus = "reject"
)

// CompItem is a single comparable sold listing used to estimate market price.
type CompItem struct {
	Title        string           `json:"title"`
	Price        float64          `json:"price"`
	URL          string           `json:"url"`
	FilterStatus CompFilterStatus `json:"filterStatus,omitempty"`
}

// Listing is one evaluated marketplace item, as delivered by listing_result
// and done events. Immutable once received; a later event with the same
// identity replaces the whole record.
type Listing struct {
	Title           string     `json:"title"`
	Price           float64    `json:"price"`
	Currency        string     `json:"currency,omitempty"`
	Location        string     `json:"location"`
	URL             string     `json:"url"`
	DealScore       *float64   `json:"dealScore"`
	EbaySearchQuery string     `json:"ebaySearchQuery,omitempty"`
	CompPrice       *float64   `json:"compPrice,omitempty"`
	CompItems       []CompItem `json:"compItems,omitempty"`
	NoCompReason    string     `json:"noCompReason,omitempty"`
}

// ID returns the listing's stable identity.
func (l Listing) ID() string { return l.URL }

// FilteredListing is a listing the producer excluded before evaluation.
type FilteredListing struct {
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Location     string  `json:"location"`
	URL          string  `json:"url"`
	FilterReason string  `json:"filterReason,omitempty"`
}

// ID returns the listing's stable identity.
func (l FilteredListing) ID() string { return l.URL }

// SeenListing is the minimal record reported as soon as the producer
// observes a listing, before evaluation completes. Only used to render
// pending rows; superseded once the same identity shows up evaluated or
// filtered-out.
type SeenListing struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Location    string  `json:"location"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
	Filtered    bool    `json:"filtered,omitempty"`
}

// ID returns the listing's stable identity.
func (l SeenListing) ID() string { return l.URL }
