// Package audd implements the AudD music recognition API. A raw audio
// excerpt resolves to a single result whose nested provider blocks often
// carry the ISRC the local catalog needs for dedup.
package audd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"aircheck/internal/musicid"
)

// MaxUploadBytes caps the audio excerpt size accepted by the API.
const MaxUploadBytes = 25 << 20

// AppleMusic is the Apple Music provider block.
type AppleMusic struct {
	ISRC        string `json:"isrc"`
	AlbumName   string `json:"albumName"`
	ReleaseDate string `json:"releaseDate"`
}

// Spotify is the Spotify provider block.
type Spotify struct {
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

// Deezer is the Deezer provider block.
type Deezer struct {
	ISRC string `json:"isrc"`
}

// Result is a single recognition with its provider blocks.
type Result struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
	Label       string `json:"label"`
	ISRC        string `json:"isrc"`

	AppleMusic *AppleMusic `json:"apple_music"`
	Spotify    *Spotify    `json:"spotify"`
	Deezer     *Deezer     `json:"deezer"`
}

// ResolveISRC returns the first ISRC found, checking the primary result and
// then the provider blocks in a fixed order.
func (r *Result) ResolveISRC() string {
	if r == nil {
		return ""
	}
	if isrc := strings.TrimSpace(r.ISRC); isrc != "" {
		return isrc
	}
	if r.AppleMusic != nil {
		if isrc := strings.TrimSpace(r.AppleMusic.ISRC); isrc != "" {
			return isrc
		}
	}
	if r.Spotify != nil {
		if isrc := strings.TrimSpace(r.Spotify.ExternalIDs.ISRC); isrc != "" {
			return isrc
		}
	}
	if r.Deezer != nil {
		if isrc := strings.TrimSpace(r.Deezer.ISRC); isrc != "" {
			return isrc
		}
	}
	return ""
}

type recognizeResponse struct {
	Status string  `json:"status"`
	Result *Result `json:"result"`
	Error  struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
}

// Client calls the AudD recognition service.
type Client struct {
	apiToken   string
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

// New creates an AudD client.
func New(apiToken, baseURL string, opts ...Option) (*Client, error) {
	apiToken = strings.TrimSpace(apiToken)
	if apiToken == "" {
		return nil, errors.New("audd api token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("audd base url required")
	}
	client := &Client{
		apiToken:   apiToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Recognize uploads an audio excerpt as multipart form data.
func (c *Client) Recognize(ctx context.Context, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, musicid.Wrap(musicid.ErrPermanentInput, "audd", "recognize", "empty audio excerpt", nil)
	}
	if len(audio) > MaxUploadBytes {
		return nil, musicid.Wrap(musicid.ErrPermanentInput, "audd", "recognize", fmt.Sprintf("excerpt %d bytes exceeds cap", len(audio)), nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("api_token", c.apiToken); err != nil {
		return nil, fmt.Errorf("write api_token field: %w", err)
	}
	part, err := writer.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, musicid.Wrap(musicid.ErrTimeout, "audd", "recognize", fmt.Sprintf("latency=%v", latency), err)
		}
		return nil, musicid.Wrap(musicid.ErrTransient, "audd", "recognize", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, musicid.Wrap(musicid.ErrTransient, "audd", "recognize", fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	case resp.StatusCode >= 400:
		return nil, musicid.Wrap(musicid.ErrNoMatch, "audd", "recognize", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, musicid.Wrap(musicid.ErrTransient, "audd", "recognize", "decode response", err)
	}
	if payload.Status != "success" {
		return nil, musicid.Wrap(musicid.ErrTransient, "audd", "recognize", payload.Error.ErrorMessage, nil)
	}
	if payload.Result == nil || strings.TrimSpace(payload.Result.Title) == "" {
		return nil, musicid.Wrap(musicid.ErrNoMatch, "audd", "recognize", "empty result", nil)
	}
	return payload.Result, nil
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
