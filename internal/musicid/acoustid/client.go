// Package acoustid implements the AcoustID lookup API. A Chromaprint
// fingerprint plus the audio duration resolves to scored recording
// candidates, each possibly carrying ISRCs.
package acoustid

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

	"aircheck/internal/musicid"
)

// Artist is one credited performer on a recording.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Release is an album or single the recording appeared on.
type Release struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Recording is a candidate identification.
type Recording struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Duration float64   `json:"duration"`
	Artists  []Artist  `json:"artists"`
	ISRCs    []string  `json:"isrcs"`
	Releases []Release `json:"releases"`
}

// Result is one scored lookup result with its recordings.
type Result struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []Recording `json:"recordings"`
}

type lookupResponse struct {
	Status  string   `json:"status"`
	Results []Result `json:"results"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Match is the flattened best candidate the resolver consumes.
type Match struct {
	RecordingID string
	Title       string
	Artist      string
	Album       string
	ISRC        string
	Duration    float64
	Score       float64
}

// Client calls the AcoustID web service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates an AcoustID client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("acoustid api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("acoustid base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Lookup submits a compressed Chromaprint fingerprint. Duration must be a
// positive whole number of seconds; the service rejects lookups without it.
func (c *Client) Lookup(ctx context.Context, fingerprint string, durationSeconds int) (*Match, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, musicid.Wrap(musicid.ErrPermanentInput, "acoustid", "lookup", "empty fingerprint", nil)
	}
	if durationSeconds <= 0 {
		return nil, musicid.Wrap(musicid.ErrPermanentInput, "acoustid", "lookup", fmt.Sprintf("invalid duration %d", durationSeconds), nil)
	}

	form := url.Values{}
	form.Set("client", c.apiKey)
	form.Set("meta", "recordings+releases+tracks+compress")
	form.Set("fingerprint", fingerprint)
	form.Set("duration", strconv.Itoa(durationSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, musicid.Wrap(musicid.ErrTimeout, "acoustid", "lookup", fmt.Sprintf("latency=%v", latency), err)
		}
		return nil, musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	case resp.StatusCode >= 400:
		// Client errors are treated as a clean miss so the cascade moves on.
		return nil, musicid.Wrap(musicid.ErrNoMatch, "acoustid", "lookup", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", "decode response", err)
	}
	if payload.Status != "ok" {
		return nil, musicid.Wrap(musicid.ErrTransient, "acoustid", "lookup", payload.Error.Message, nil)
	}

	match := bestMatch(payload.Results)
	if match == nil {
		return nil, musicid.Wrap(musicid.ErrNoMatch, "acoustid", "lookup", "no scored recordings", nil)
	}
	return match, nil
}

// bestMatch flattens the highest-scoring result that carries a recording.
func bestMatch(results []Result) *Match {
	var best *Match
	for _, result := range results {
		if len(result.Recordings) == 0 {
			continue
		}
		if best != nil && result.Score <= best.Score {
			continue
		}
		rec := result.Recordings[0]
		match := &Match{
			RecordingID: rec.ID,
			Title:       rec.Title,
			Duration:    rec.Duration,
			Score:       result.Score,
		}
		if len(rec.Artists) > 0 {
			match.Artist = rec.Artists[0].Name
		}
		if len(rec.ISRCs) > 0 {
			match.ISRC = rec.ISRCs[0]
		}
		if len(rec.Releases) > 0 {
			match.Album = rec.Releases[0].Title
		}
		best = match
	}
	return best
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
