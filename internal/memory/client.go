// Package memory talks to the long-term memory backend. Every call is
// best-effort and time-bounded; a dead backend degrades boni to a goldfish,
// never to a crash.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Snippet is one recalled memory, ready for prompt injection.
type Snippet struct {
	Timestamp string  `json:"timestamp"`
	Mood      string  `json:"mood"`
	Message   string  `json:"message"`
	Score     float64 `json:"score,omitempty"`
}

// MetricsRecord is the machine-state part of a stored memory.
type MetricsRecord struct {
	CPUPercent     int      `json:"cpu_percent"`
	RAMPercent     int      `json:"ram_percent"`
	BatteryPercent *int     `json:"battery_percent"`
	IsCharging     bool     `json:"is_charging"`
	ActiveApp      string   `json:"active_app"`
	Hour           int      `json:"hour"`
	Minute         int      `json:"minute"`
}

// ReactionRecord is the reaction part of a stored memory.
type ReactionRecord struct {
	Message string `json:"message"`
	Mood    string `json:"mood"`
}

type storeRequest struct {
	Metrics   MetricsRecord  `json:"metrics"`
	Reaction  ReactionRecord `json:"reaction"`
	Timestamp string         `json:"timestamp"`
	UserID    string         `json:"user_id"`
}

type storeResponse struct {
	ID string `json:"id"`
}

type searchRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
	UserID string `json:"user_id"`
}

type searchResponse struct {
	Memories []struct {
		Timestamp string         `json:"timestamp"`
		Reaction  ReactionRecord `json:"reaction"`
		Score     float64        `json:"score"`
	} `json:"memories"`
}

// Client is the HTTP client for the memory backend.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a memory client. timeout bounds every request.
func NewClient(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Store persists one metrics+reaction pair. Failures are logged and
// swallowed; the bool only exists for tests and callers that care.
func (c *Client) Store(ctx context.Context, metrics MetricsRecord, reaction ReactionRecord) bool {
	req := storeRequest{
		Metrics:   metrics,
		Reaction:  reaction,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    c.userID,
	}

	var resp storeResponse
	if err := c.post(ctx, "/api/v1/memories", req, &resp); err != nil {
		log.Warn().Err(err).Msg("Memory store failed")
		return false
	}
	log.Debug().Str("id", resp.ID).Msg("Memory stored")
	return true
}

// Search returns up to topK memories similar to the query. A failing backend
// yields an empty slice, never an error the pipeline would have to handle.
func (c *Client) Search(ctx context.Context, query string, topK int) []Snippet {
	req := searchRequest{Query: query, TopK: topK, UserID: c.userID}

	var resp searchResponse
	if err := c.post(ctx, "/api/v1/memories/search", req, &resp); err != nil {
		log.Warn().Err(err).Msg("Memory search failed")
		return nil
	}

	out := make([]Snippet, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		out = append(out, Snippet{
			Timestamp: m.Timestamp,
			Mood:      m.Reaction.Mood,
			Message:   m.Reaction.Message,
			Score:     m.Score,
		})
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
