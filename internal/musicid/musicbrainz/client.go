// Package musicbrainz implements the MusicBrainz recording search used as a
// cheap metadata probe before the paid identification providers.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aircheck/internal/musicid"
)

type artistCredit struct {
	Name string `json:"name"`
}

type release struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

type recording struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	LengthMillis int            `json:"length"`
	ISRCs        []string       `json:"isrcs"`
	Credits      []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

// Candidate is one scored recording from the directory.
type Candidate struct {
	RecordingID string
	Title       string
	Artist      string
	Album       string
	ReleaseDate string
	ISRC        string
	Duration    float64
	// Score is the search score normalized to [0, 1].
	Score float64
}

// Client calls the MusicBrainz web service. The service requires a
// descriptive User-Agent and tolerates roughly one request per second.
type Client struct {
	baseURL    string
	userAgent  string
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

// New creates a MusicBrainz client.
func New(baseURL, userAgent string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("musicbrainz user agent required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search queries recordings by artist and title, best score first.
func (c *Client) Search(ctx context.Context, artist, title string) ([]Candidate, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return nil, musicid.Wrap(musicid.ErrPermanentInput, "musicbrainz", "search", "artist and title required", nil)
	}

	endpoint, err := url.Parse(c.baseURL + "/ws/2/recording")
	if err != nil {
		return nil, fmt.Errorf("parse musicbrainz url: %w", err)
	}
	params := url.Values{}
	params.Set("query", fmt.Sprintf(`artist:%q AND recording:%q`, artist, title))
	params.Set("fmt", "json")
	params.Set("limit", "5")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, musicid.Wrap(musicid.ErrTimeout, "musicbrainz", "search", fmt.Sprintf("latency=%v", latency), err)
		}
		return nil, musicid.Wrap(musicid.ErrTransient, "musicbrainz", "search", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, musicid.Wrap(musicid.ErrTransient, "musicbrainz", "search", fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	case resp.StatusCode >= 400:
		return nil, musicid.Wrap(musicid.ErrNoMatch, "musicbrainz", "search", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, musicid.Wrap(musicid.ErrTransient, "musicbrainz", "search", "decode response", err)
	}
	if len(payload.Recordings) == 0 {
		return nil, musicid.Wrap(musicid.ErrNoMatch, "musicbrainz", "search", "no recordings", nil)
	}

	candidates := make([]Candidate, 0, len(payload.Recordings))
	for _, rec := range payload.Recordings {
		candidate := Candidate{
			RecordingID: rec.ID,
			Title:       rec.Title,
			Duration:    float64(rec.LengthMillis) / 1000,
			Score:       float64(rec.Score) / 100,
		}
		if len(rec.Credits) > 0 {
			candidate.Artist = rec.Credits[0].Name
		}
		if len(rec.ISRCs) > 0 {
			candidate.ISRC = rec.ISRCs[0]
		}
		if len(rec.Releases) > 0 {
			candidate.Album = rec.Releases[0].Title
			candidate.ReleaseDate = rec.Releases[0].Date
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
