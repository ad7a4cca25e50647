// Package resolver turns catalog identifiers (TIC or Gaia) into sky positions.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/patrickmn/go-cache"
)

// Supported identifier surveys.
const (
	SurveyTIC  = "tic"
	SurveyGaia = "gaia"
)

var (
	// ErrUnknownSurvey means the identifier's survey is not tic or gaia.
	ErrUnknownSurvey = errors.New("unknown survey")
	// ErrNotConfigured means no resolver service URL was set.
	ErrNotConfigured = errors.New("resolver URL not configured")
)

// Resolver looks up the position of a catalog source.
type Resolver interface {
	Resolve(ctx context.Context, survey, id string) (locator.SkyPosition, error)
}

// NormalizeSurvey lower-cases a survey name and rejects unknown ones.
func NormalizeSurvey(survey string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(survey))
	switch s {
	case SurveyTIC, SurveyGaia:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSurvey, survey)
}

// Client resolves identifiers against an HTTP lookup service
type Client struct {
	BaseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient creates a resolver client. Resolved positions are cached for
// the life of the client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// HTTPClient exposes the underlying client, mostly so tests can mock it.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Resolve fetches {base}/api/v0/resolve?survey=<survey>&id=<id>.
func (c *Client) Resolve(ctx context.Context, survey, id string) (locator.SkyPosition, error) {
	s, err := NormalizeSurvey(survey)
	if err != nil {
		return locator.SkyPosition{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return locator.SkyPosition{}, fmt.Errorf("empty %s identifier", s)
	}
	if c.BaseURL == "" {
		return locator.SkyPosition{}, ErrNotConfigured
	}

	key := s + ":" + id
	if cached, found := c.cache.Get(key); found {
		if pos, ok := cached.(locator.SkyPosition); ok {
			slog.Debug("Resolver cache hit", "survey", s, "id", id)
			return pos, nil
		}
	}

	q := url.Values{}
	q.Set("survey", s)
	q.Set("id", id)
	resolveURL := fmt.Sprintf("%s/api/v0/resolve?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolveURL, nil)
	if err != nil {
		return locator.SkyPosition{}, fmt.Errorf("failed to create resolve request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return locator.SkyPosition{}, fmt.Errorf("failed to resolve %s %s: %w", s, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return locator.SkyPosition{}, fmt.Errorf("resolver returned status %d for %s %s: %s", resp.StatusCode, s, id, string(body))
	}

	var payload struct {
		RA  *float64 `json:"ra"`
		Dec *float64 `json:"dec"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return locator.SkyPosition{}, fmt.Errorf("failed to decode resolver response: %w", err)
	}
	if payload.RA == nil || payload.Dec == nil {
		return locator.SkyPosition{}, fmt.Errorf("resolver response for %s %s has no position", s, id)
	}
	pos := locator.SkyPosition{RA: *payload.RA, Dec: *payload.Dec}
	if math.IsNaN(pos.RA) || math.IsNaN(pos.Dec) || pos.Dec < -90 || pos.Dec > 90 {
		return locator.SkyPosition{}, fmt.Errorf("resolver returned invalid position %s for %s %s", pos, s, id)
	}

	c.cache.Set(key, pos, cache.DefaultExpiration)
	slog.Debug("Resolved source", "survey", s, "id", id, "ra", pos.RA, "dec", pos.Dec)
	return pos, nil
}
