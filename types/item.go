package types

// CandidateItem is a recognized product guess.
//
// The typed fields are the subset the aggregator needs for dedup and
// scoring. Provider-specific fields ride along untouched in Extra so the
// scoring logic stays type-safe without dropping forward-compatible data.
type CandidateItem struct {
	// Title is the product title. Required.
	Title string `msgpack:"title" json:"title"`
	// StoreURL is the product page URL; its hostname feeds the dedup key.
	StoreURL string `msgpack:"store_url,omitempty" json:"store_url,omitempty"`
	// Reason is a human-readable provenance string. Rewritten during
	// aggregation once an item is seen in more than one tile.
	Reason string `msgpack:"reason,omitempty" json:"reason,omitempty"`
	// Score is the vote count: the number of tiles that independently
	// proposed a key-equivalent item. Always >= 1 in aggregated output.
	Score int `msgpack:"score" json:"score"`
	// Extra holds provider-specific pass-through fields.
	Extra map[string]any `msgpack:"extra,omitempty" json:"extra,omitempty"`
}
