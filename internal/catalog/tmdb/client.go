// Package tmdb resolves movie discs to canonical "Title (Year)" names via
// The Movie Database search API.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"platter/internal/services"
)

// Client queries a TMDB v3-shaped API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
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

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "tmdb", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "tmdb", "base url required", nil)
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "en-US"
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// MovieName resolves a disc label or guessed title to the catalog's
// canonical "Title (Year)" form. The first search result is taken; TMDB
// orders results by relevance.
func (c *Client) MovieName(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", services.Wrap(services.ErrValidation, "catalog", "movie", "query must not be empty", nil)
	}

	endpoint, err := url.Parse(c.baseURL + "/search/movie")
	if err != nil {
		return "", fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	params.Set("language", c.language)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return "", services.Wrap(services.ErrCatalog, "catalog", "movie", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrCatalog, "catalog", "movie", fmt.Sprintf("tmdb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload struct {
		Results []struct {
			Title       string `json:"title"`
			ReleaseDate string `json:"release_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrCatalog, "catalog", "movie", "decode response", err)
	}
	if len(payload.Results) == 0 {
		return "", services.Wrap(services.ErrNotFound, "catalog", "movie", "no movie matched "+query, nil)
	}

	best := payload.Results[0]
	year := releaseYear(best.ReleaseDate)
	if best.Title == "" || year == "" {
		return "", services.Wrap(services.ErrNotFound, "catalog", "movie", "result missing title or year for "+query, nil)
	}
	return fmt.Sprintf("%s (%s)", best.Title, year), nil
}

func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
