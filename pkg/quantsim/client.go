// Package quantsim is a Go client for the quantsim status API.
package quantsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the server has no such run, or no report yet.
var ErrNotFound = errors.New("not found")

// EngineState is the live state of one engine.
type EngineState struct {
	Name     string  `json:"name"`
	Funds    float64 `json:"funds"`
	Shares   float64 `json:"shares"`
	Invested bool    `json:"invested"`
	Equity   float64 `json:"equity"`
	Trades   int     `json:"trades"`
	Gate     string  `json:"gate,omitempty"`
}

// Status is the state of the running simulation after its latest tick.
type Status struct {
	Symbol    string        `json:"symbol"`
	Samples   int           `json:"samples"`
	Price     float64       `json:"price"`
	Timestamp time.Time     `json:"timestamp"`
	Engines   []EngineState `json:"engines"`
	Closed    bool          `json:"closed"`
}

// Run is a persisted simulation run.
type Run struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Samples     int       `json:"samples"`
	AssetChange *float64  `json:"assetChange,omitempty"`
	Leader      string    `json:"leader"`
}

// Result is one ranked engine of a run.
type Result struct {
	Rank          int      `json:"rank"`
	Engine        string   `json:"engine"`
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	MinRealized   float64  `json:"minRealized"`
	MaxRealized   float64  `json:"maxRealized"`
	Trades        int      `json:"trades"`
	PercentChange *float64 `json:"percentChange,omitempty"`
}

// Event is one trade of an engine.
type Event struct {
	Side      string    `json:"side"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Client provides a Go SDK for interacting with the quantsim status API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new quantsim API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Status retrieves the live simulation state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.get(ctx, "/api/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Runs retrieves the most recent persisted runs, newest first. A limit of
// zero lists all runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	if err := c.get(ctx, "/api/runs?limit="+strconv.Itoa(limit), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Results retrieves the ranked engine results of a run.
func (c *Client) Results(ctx context.Context, runID string) ([]Result, error) {
	var results []Result
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(runID), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Events retrieves the trades of one engine in a run.
func (c *Client) Events(ctx context.Context, runID, engine string) ([]Event, error) {
	var events []Event
	path := "/api/runs/" + url.PathEscape(runID) + "/events/" + url.PathEscape(engine)
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("GET %s: %w: %s", path, ErrNotFound, body.Error)
		}
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
