package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spotlens-io/spotlens/iox"
	"github.com/spotlens-io/spotlens/types"
)

// Recognizer turns one encoded tile into a TileResult.
//
// Implementations never return a Go error: every failure mode is captured
// into the result with Status == error so a bad tile cannot abort its
// siblings.
type Recognizer interface {
	Recognize(ctx context.Context, tile types.Tile) types.TileResult
}

// Config configures the HTTP recognition client.
type Config struct {
	// Endpoint is the recognition endpoint URL (required).
	Endpoint string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Retry is the retry/backoff policy. Zero value uses defaults.
	Retry RetryPolicy
	// HTTPClient overrides the transport (for testing). The per-attempt
	// timeout lives in the retry policy, not here.
	HTTPClient *http.Client
}

// Client is the HTTP recognition client.
type Client struct {
	config Config
	client *http.Client
	retry  RetryPolicy
}

// NewClient creates a recognition client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("recognition client requires an endpoint")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		config: cfg,
		client: httpClient,
		retry:  cfg.Retry.withDefaults(),
	}, nil
}

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recognition endpoint returned %d: %s", e.Code, e.Body)
}

// recognizeRequest is the wire request to the recognition endpoint.
type recognizeRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

// recognizeResponse is the tile-shaped wire response. Items are decoded
// as raw maps so provider-specific fields survive into CandidateItem.Extra.
type recognizeResponse struct {
	Status     string           `json:"status"`
	Items      []map[string]any `json:"items"`
	Query      string           `json:"query,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Recognize sends one tile to the recognition endpoint and normalizes the
// response into a TileResult. Failures are retried per the client's
// policy; a terminal failure is recorded into the result, never returned.
func (c *Client) Recognize(ctx context.Context, tile types.Tile) types.TileResult {
	var resp recognizeResponse

	err := c.retry.Do(ctx, func(attemptCtx context.Context) error {
		return c.doRequest(attemptCtx, tile, &resp)
	})
	if err != nil {
		wrapped := WrapRecognitionError(err, tile.Index)
		return types.TileResult{
			TileIndex: tile.Index,
			Status:    types.TileStatusError,
			Error:     ErrorCode(wrapped),
		}
	}

	return normalizeResponse(tile.Index, &resp)
}

// doRequest performs one POST attempt.
func (c *Client) doRequest(ctx context.Context, tile types.Tile, out *recognizeResponse) error {
	payload, err := json.Marshal(recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(tile.Data),
		MIMEType: tile.MIMEType,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post tile: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	// The endpoint reports session expiry in-band with a 200.
	if out.Error == types.ErrAuthRequired {
		return fmt.Errorf("%w: %s", ErrAuth, types.ErrAuthRequired)
	}

	return nil
}

// normalizeResponse converts a wire response into a TileResult.
func normalizeResponse(tileIndex int, resp *recognizeResponse) types.TileResult {
	result := types.TileResult{
		TileIndex:  tileIndex,
		Query:      resp.Query,
		Confidence: resp.Confidence,
	}

	switch resp.Status {
	case string(types.TileStatusOK):
		result.Status = types.TileStatusOK
		result.Items = normalizeItems(resp.Items)
		if len(result.Items) == 0 {
			result.Status = types.TileStatusNoResults
		}
	case string(types.TileStatusNoResults), "":
		result.Status = types.TileStatusNoResults
	default:
		result.Status = types.TileStatusError
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = resp.Status
		}
	}

	return result
}

// normalizeItems converts raw item maps into typed candidates, routing
// unrecognized fields into the Extra pass-through bag.
func normalizeItems(raw []map[string]any) []types.CandidateItem {
	items := make([]types.CandidateItem, 0, len(raw))
	for _, m := range raw {
		title, _ := m["title"].(string)
		if title == "" {
			continue
		}

		item := types.CandidateItem{Title: title, Score: 1}
		if u, ok := m["store_url"].(string); ok {
			item.StoreURL = u
		}
		if r, ok := m["reason"].(string); ok {
			item.Reason = r
		}

		for k, v := range m {
			switch k {
			case "title", "store_url", "reason", "score":
			default:
				if item.Extra == nil {
					item.Extra = make(map[string]any)
				}
				item.Extra[k] = v
			}
		}

		items = append(items, item)
	}
	return items
}

// truncate bounds a string for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
