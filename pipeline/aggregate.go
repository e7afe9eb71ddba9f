package pipeline

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/types"
)

// aggregation is the merged view of all ok tiles, pre-classification.
type aggregation struct {
	// Items is the deduplicated candidate list, sorted by descending
	// score (ties keep first-seen order), truncated to the top cap.
	Items []types.CandidateItem
	// Query is the first non-empty query seen in tile order.
	Query string
	// Confidence is the mean of confidences from ok tiles that reported
	// one; 0 if none did.
	Confidence float64
}

// aggregate merges all tile results into a single ranked, deduplicated
// candidate list.
//
// Items sharing an identity key are the same candidate: the first
// occurrence seeds the entry, every later one increments its score by 1.
// Vote-counting by tile agreement is the confidence proxy — a product
// independently spotted across overlapping crops is more likely correct
// than any single tile's own confidence suggests.
func aggregate(results []types.TileResult, collector *metrics.Collector) aggregation {
	var agg aggregation

	var confidenceSum float64
	var confidenceCount int

	byKey := make(map[string]int) // identity key -> index into merged
	var merged []types.CandidateItem

	for _, result := range results {
		if result.Status != types.TileStatusOK {
			continue
		}

		if agg.Query == "" && result.Query != "" {
			agg.Query = result.Query
		}
		if result.Confidence != nil {
			confidenceSum += *result.Confidence
			confidenceCount++
		}

		collector.AddItemsCollected(len(result.Items))

		for _, item := range result.Items {
			key := identityKey(item)
			if idx, seen := byKey[key]; seen {
				merged[idx].Score++
				merged[idx].Reason = fmt.Sprintf("Found in %d tiles", merged[idx].Score)
				collector.IncDedupMerge()
				continue
			}

			first := item
			first.Score = 1
			if first.Reason == "" {
				first.Reason = "Found in 1 tile"
			}
			byKey[key] = len(merged)
			merged = append(merged, first)
		}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > types.MaxAggregatedItems {
		merged = merged[:types.MaxAggregatedItems]
	}
	agg.Items = merged
	collector.AddItemsReturned(len(merged))

	if confidenceCount > 0 {
		agg.Confidence = confidenceSum / float64(confidenceCount)
	}

	return agg
}

// identityKey computes the dedup key for a candidate: the lowercased
// store hostname (or "unknown") plus the trimmed, lowercased title.
func identityKey(item types.CandidateItem) string {
	host := "unknown"
	if item.StoreURL != "" {
		if u, err := url.Parse(item.StoreURL); err == nil && u.Hostname() != "" {
			host = strings.ToLower(u.Hostname())
		}
	}
	return host + "|" + strings.TrimSpace(strings.ToLower(item.Title))
}
