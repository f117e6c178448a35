// Package serp queries an external shopping search API for keyword-based
// product results.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/retry"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
	"github.com/infinitum-cloud/infinitum/internal/metrics"
)

// Config holds shopping search API settings.
type Config struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Policy            retry.Policy
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client is a keyword shopping search client.
type Client struct {
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	policy  retry.Policy
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a shopping search client.
func NewClient(cfg *Config) *Client {
	policy := cfg.Policy
	if policy.MaxAttempts() == 0 {
		policy = retry.DefaultPolicy()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: policy.CallTimeout()}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: limiter,
		policy:  policy,
		http:    httpClient,
		logger:  cfg.Logger,
	}
}

type searchResponse struct {
	ShoppingResults []struct {
		Position   int               `json:"position"`
		ProductID  string            `json:"product_id"`
		Title      string            `json:"title"`
		Snippet    string            `json:"snippet"`
		Price      string            `json:"price"`
		Source     string            `json:"source"`
		Link       string            `json:"link"`
		Attributes map[string]string `json:"attributes"`
	} `json:"shopping_results"`
}

// Search runs a keyword shopping search and returns keyword-sourced
// candidates in rank order. Metadata filters are applied client-side.
func (c *Client) Search(ctx context.Context, keywords []string, limit int, filters filter.Set) ([]candidate.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: keywords are required", domain.ErrInvalidInput)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("q", strings.Join(keywords, " "))
	params.Set("num", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var parsed searchResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := c.get(ctx, params, &parsed)
		duration := time.Since(start)

		if err != nil {
			metrics.RetrievalSourceRequestsTotal.WithLabelValues("keyword", "error").Inc()
			return err
		}
		metrics.RetrievalSourceRequestsTotal.WithLabelValues("keyword", "success").Inc()
		metrics.RetrievalSourceDuration.WithLabelValues("keyword").Observe(duration.Seconds())
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(parsed.ShoppingResults))
	rank := 0
	for _, r := range parsed.ShoppingResults {
		attrs := map[string]string{}
		for k, v := range r.Attributes {
			attrs[k] = v
		}
		if r.Price != "" {
			attrs["price"] = r.Price
		}
		if r.Source != "" {
			attrs["source"] = r.Source
		}
		if r.Link != "" {
			attrs["link"] = r.Link
		}
		if !filters.Matches(attrs) {
			continue
		}
		id := r.ProductID
		if id == "" {
			id = r.Link
		}
		out = append(out, candidate.New(
			id,
			r.Title,
			r.Snippet,
			attrs,
			0, // keyword results carry rank, not a similarity score
			candidate.Keyword,
			rank,
		))
		rank++
		if rank == limit {
			break
		}
	}
	return out, nil
}

// HealthCheck probes API reachability with a minimal request.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("search health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", domain.ErrKeywordSearchUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search status %d: %s: %w", resp.StatusCode, payload, domain.ErrKeywordSearchUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", domain.ErrKeywordSearchUnavailable)
	}
	return nil
}
