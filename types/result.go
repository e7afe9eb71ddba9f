package types

// MaxAggregatedItems caps the final candidate list length.
const MaxAggregatedItems = 8

// ScanStatus is the terminal status of a whole pipeline run.
type ScanStatus string

const (
	// ScanStatusOK indicates the aggregated candidate list is non-empty.
	ScanStatusOK ScanStatus = "ok"
	// ScanStatusNoResults indicates recognition genuinely found nothing.
	// This is a legitimate outcome, not an error.
	ScanStatusNoResults ScanStatus = "no_results"
	// ScanStatusError indicates the pipeline failed (generation failure,
	// auth failure across tiles, or an unexpected exception).
	ScanStatusError ScanStatus = "error"
)

// AggregatedResult is the pipeline's single return value.
// Constructed exactly once per invocation, immutable afterward.
// The public entry point never returns a Go error; every failure mode
// resolves into this envelope.
type AggregatedResult struct {
	// Status is the overall outcome.
	Status ScanStatus `msgpack:"status" json:"status"`
	// AggregatedItems is sorted by descending Score, length <= MaxAggregatedItems.
	// Non-empty implies Status == ok.
	AggregatedItems []CandidateItem `msgpack:"aggregated_items" json:"aggregated_items"`
	// Query is the first non-empty query observed across ok tiles, in
	// tile order. Best-effort, not globally optimal.
	Query string `msgpack:"query,omitempty" json:"query,omitempty"`
	// Confidence is the arithmetic mean of confidences from ok tiles that
	// reported one; 0 if none did.
	Confidence float64 `msgpack:"confidence" json:"confidence"`
	// Message is a user-facing string. Empty on success.
	Message string `msgpack:"message,omitempty" json:"message,omitempty"`
	// Error is the machine error code (ErrAuthRequired, ErrVisionFailed).
	// Empty unless Status == error.
	Error string `msgpack:"error,omitempty" json:"error,omitempty"`
}
