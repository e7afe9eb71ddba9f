package pipeline

import (
	"reflect"
	"testing"

	"github.com/spotlens-io/spotlens/types"
)

func TestClassifyOutcome_NonEmptyListIsOK(t *testing.T) {
	results := []types.TileResult{
		okTile(0, types.CandidateItem{Title: "a"}),
		{TileIndex: 1, Status: types.TileStatusError, Error: types.ErrAuthRequired},
	}
	agg := aggregate(results, nil)

	out := classifyOutcome(results, agg)
	if out.Status != types.ScanStatusOK {
		t.Fatalf("Status = %q, want ok", out.Status)
	}
	if out.Message != "" || out.Error != "" {
		t.Errorf("ok outcome must have no message/error, got %q/%q", out.Message, out.Error)
	}
	if len(out.AggregatedItems) != 1 {
		t.Errorf("items = %d, want 1", len(out.AggregatedItems))
	}
}

func TestClassifyOutcome_AuthPrecedence(t *testing.T) {
	// All four tiles auth-failed: the aggregate must report AUTH_REQUIRED,
	// not a generic no-results message.
	var results []types.TileResult
	for i := 0; i < 4; i++ {
		results = append(results, types.TileResult{
			TileIndex: i,
			Status:    types.TileStatusError,
			Error:     types.ErrAuthRequired,
		})
	}

	out := classifyOutcome(results, aggregate(results, nil))
	if out.Status != types.ScanStatusError {
		t.Fatalf("Status = %q, want error", out.Status)
	}
	if out.Error != types.ErrAuthRequired {
		t.Errorf("Error = %q, want AUTH_REQUIRED", out.Error)
	}
	if out.Message == "" {
		t.Error("auth outcome needs a re-authentication message")
	}
}

func TestClassifyOutcome_SingleAuthTileStillPromoted(t *testing.T) {
	results := []types.TileResult{
		{TileIndex: 0, Status: types.TileStatusNoResults},
		{TileIndex: 1, Status: types.TileStatusError, Error: types.ErrAuthRequired},
		{TileIndex: 2, Status: types.TileStatusError, Error: "NETWORK"},
		{TileIndex: 3, Status: types.TileStatusNoResults},
	}

	out := classifyOutcome(results, aggregate(results, nil))
	if out.Status != types.ScanStatusError || out.Error != types.ErrAuthRequired {
		t.Errorf("got %q/%q, want error/AUTH_REQUIRED", out.Status, out.Error)
	}
}

func TestClassifyOutcome_NoResultsDistinctFromAuth(t *testing.T) {
	var results []types.TileResult
	for i := 0; i < 4; i++ {
		results = append(results, types.TileResult{
			TileIndex: i,
			Status:    types.TileStatusNoResults,
		})
	}

	out := classifyOutcome(results, aggregate(results, nil))
	if out.Status != types.ScanStatusNoResults {
		t.Fatalf("Status = %q, want no_results", out.Status)
	}
	if out.Error != "" {
		t.Errorf("Error should be unset, got %q", out.Error)
	}
	if out.Message == "" {
		t.Error("no_results outcome needs retry guidance")
	}
}

func TestClassifyOutcome_GenericFailuresAreNoResults(t *testing.T) {
	results := []types.TileResult{
		{TileIndex: 0, Status: types.TileStatusError, Error: "NETWORK"},
		{TileIndex: 1, Status: types.TileStatusError, Error: "TIMEOUT"},
	}

	out := classifyOutcome(results, aggregate(results, nil))
	if out.Status != types.ScanStatusNoResults {
		t.Errorf("Status = %q, want no_results (no auth tile, no items)", out.Status)
	}
}

func TestClassifyOutcome_Idempotent(t *testing.T) {
	results := []types.TileResult{
		okTile(0, types.CandidateItem{Title: "a", StoreURL: "https://x.example.com/1"}),
		okTile(1, types.CandidateItem{Title: "a", StoreURL: "https://x.example.com/2"}),
		{TileIndex: 2, Status: types.TileStatusError, Error: "NETWORK"},
		{TileIndex: 3, Status: types.TileStatusNoResults},
	}

	first := classifyOutcome(results, aggregate(results, nil))
	second := classifyOutcome(results, aggregate(results, nil))

	if !reflect.DeepEqual(first, second) {
		t.Errorf("classification not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestFailureResult(t *testing.T) {
	out := failureResult("decode image: bad header")
	if out.Status != types.ScanStatusError || out.Error != types.ErrVisionFailed {
		t.Errorf("got %q/%q, want error/VISION_FAILED", out.Status, out.Error)
	}
	if out.Message != "decode image: bad header" {
		t.Errorf("Message = %q", out.Message)
	}

	fallback := failureResult("")
	if fallback.Message == "" {
		t.Error("empty message should fall back to a generic one")
	}
}
