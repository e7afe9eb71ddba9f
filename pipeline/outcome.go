package pipeline

import (
	"github.com/spotlens-io/spotlens/types"
	"github.com/spotlens-io/spotlens/vision"
)

// User-facing message for the no-results outcome.
const noResultsMessage = "No products recognized. Try a cropped image, better lighting, or less clutter."

// classifyOutcome decides the terminal pipeline status from the pattern
// of per-tile outcomes. Exactly one status is chosen per run; there are
// no further transitions and no retrying at this stage — all retrying
// happened inside the recognition client before results got here.
//
// Precedence:
//  1. Non-empty aggregated list -> ok.
//  2. Empty list with at least one AUTH_REQUIRED tile -> error. The root
//     cause (expired session) is actionable and distinct from "nothing
//     recognized", so it wins over the generic no-results case.
//  3. Otherwise -> no_results with retry guidance.
func classifyOutcome(results []types.TileResult, agg aggregation) *types.AggregatedResult {
	if len(agg.Items) > 0 {
		return &types.AggregatedResult{
			Status:          types.ScanStatusOK,
			AggregatedItems: agg.Items,
			Query:           agg.Query,
			Confidence:      agg.Confidence,
		}
	}

	for _, result := range results {
		if result.Status == types.TileStatusError && result.Error == types.ErrAuthRequired {
			return &types.AggregatedResult{
				Status:          types.ScanStatusError,
				AggregatedItems: []types.CandidateItem{},
				Error:           types.ErrAuthRequired,
				Message:         vision.UserMessage(vision.ErrAuth),
			}
		}
	}

	return &types.AggregatedResult{
		Status:          types.ScanStatusNoResults,
		AggregatedItems: []types.CandidateItem{},
		Message:         noResultsMessage,
	}
}

// failureResult packages a whole-pipeline failure (generation failure or
// an unexpected panic) into the error envelope.
func failureResult(message string) *types.AggregatedResult {
	if message == "" {
		message = "Image analysis failed. Please try again."
	}
	return &types.AggregatedResult{
		Status:          types.ScanStatusError,
		AggregatedItems: []types.CandidateItem{},
		Error:           types.ErrVisionFailed,
		Message:         message,
	}
}
