// Package tvdb implements the TheTVDB v4 lookups the episode assigner
// depends on: series search, and per-season episode counts plus runtime
// ranges.
package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"platter/internal/services"
)

const (
	// Fallback runtime window (minutes) when the catalog reports no
	// episode runtimes for a season.
	defaultMinRuntime = 20
	defaultMaxRuntime = 60
)

// Series is one search match.
type Series struct {
	ID   int64
	Name string
	Year string
}

// SeasonInfo summarizes one season for classification and assignment.
type SeasonInfo struct {
	TotalEpisodes int
	// MinRuntime and MaxRuntime are episode runtimes in minutes.
	MinRuntime int
	MaxRuntime int
}

// Client talks to a TVDB v4-shaped API. Login exchanges the API key for a
// bearer token; subsequent calls reuse it.
type Client struct {
	apiKey     string
	pin        string
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
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

// New creates a TVDB client.
func New(apiKey, pin, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "tvdb", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "tvdb", "base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		pin:        strings.TrimSpace(pin),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Login exchanges the API key (and optional subscriber PIN) for a bearer
// token. Safe to call again; the token is replaced.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"apikey": c.apiKey, "pin": c.pin})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "login", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrCatalog, "catalog", "login", fmt.Sprintf("tvdb login returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "login", "decode login response", err)
	}
	if payload.Data.Token == "" {
		return services.Wrap(services.ErrCatalog, "catalog", "login", "tvdb login returned empty token", nil)
	}

	c.mu.Lock()
	c.token = payload.Data.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	token := c.bearer()
	if token == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		token = c.bearer()
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tvdb url: %w", err)
	}
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "get", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "catalog", "get", path, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrCatalog, "catalog", "get", fmt.Sprintf("tvdb returned %d for %s (latency=%v)", resp.StatusCode, path, latency), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "get", "decode response", err)
	}
	return nil
}

var titleCaser = cases.Title(language.Und)

// SearchSeries returns the best match for the show name. Results are ranked
// by string similarity against the query before the first is taken, since
// the catalog's own ordering favors popularity over closeness.
func (c *Client) SearchSeries(ctx context.Context, name string) (Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Series{}, services.Wrap(services.ErrValidation, "catalog", "search", "show name must not be empty", nil)
	}

	params := url.Values{}
	params.Set("query", name)
	params.Set("type", "series")

	var payload struct {
		Data []struct {
			TVDBID string `json:"tvdb_id"`
			Name   string `json:"name"`
			Year   string `json:"year"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/search", params, &payload); err != nil {
		return Series{}, err
	}
	if len(payload.Data) == 0 {
		return Series{}, services.Wrap(services.ErrNotFound, "catalog", "search", "no series matched "+name, nil)
	}

	bestIdx := 0
	bestScore := float32(-1)
	query := strings.ToLower(name)
	for i, result := range payload.Data {
		score := edlib.JaroWinklerSimilarity(query, strings.ToLower(result.Name))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	best := payload.Data[bestIdx]
	id, err := strconv.ParseInt(best.TVDBID, 10, 64)
	if err != nil {
		return Series{}, services.Wrap(services.ErrCatalog, "catalog", "search", "unparseable series id "+best.TVDBID, err)
	}
	return Series{
		ID:   id,
		Name: titleCaser.String(best.Name),
		Year: best.Year,
	}, nil
}

// SeasonEpisodes returns the episode count and runtime range for one season
// of the aired order.
func (c *Client) SeasonEpisodes(ctx context.Context, seriesID int64, season int) (SeasonInfo, error) {
	params := url.Values{}
	params.Set("page", "0")
	params.Set("season", strconv.Itoa(season))

	var payload struct {
		Data struct {
			Episodes []struct {
				Number       int `json:"number"`
				SeasonNumber int `json:"seasonNumber"`
				Runtime      int `json:"runtime"`
			} `json:"episodes"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/series/%d/episodes/default", seriesID)
	if err := c.get(ctx, path, params, &payload); err != nil {
		return SeasonInfo{}, err
	}

	info := SeasonInfo{}
	minRuntime, maxRuntime := 0, 0
	for _, episode := range payload.Data.Episodes {
		if episode.SeasonNumber != season {
			continue
		}
		info.TotalEpisodes++
		if episode.Runtime <= 0 {
			continue
		}
		if minRuntime == 0 || episode.Runtime < minRuntime {
			minRuntime = episode.Runtime
		}
		if episode.Runtime > maxRuntime {
			maxRuntime = episode.Runtime
		}
	}
	if info.TotalEpisodes == 0 {
		return SeasonInfo{}, services.Wrap(services.ErrNoEpisodes, "catalog", "episodes", fmt.Sprintf("season %d of series %d", season, seriesID), nil)
	}
	if minRuntime == 0 || maxRuntime == 0 {
		minRuntime, maxRuntime = defaultMinRuntime, defaultMaxRuntime
	}
	info.MinRuntime = minRuntime
	info.MaxRuntime = maxRuntime
	return info, nil
}

// Seasons binds a series so the assigner can re-fetch totals on rollover.
type Seasons struct {
	client   *Client
	seriesID int64
}

// Seasons returns a season lookup scoped to one series.
func (c *Client) Seasons(seriesID int64) *Seasons {
	return &Seasons{client: c, seriesID: seriesID}
}

// SeasonTotal implements the assigner's SeasonLookup.
func (s *Seasons) SeasonTotal(ctx context.Context, season int) (int, error) {
	info, err := s.client.SeasonEpisodes(ctx, s.seriesID, season)
	if err != nil {
		return 0, err
	}
	return info.TotalEpisodes, nil
}
