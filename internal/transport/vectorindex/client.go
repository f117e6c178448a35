// Package vectorindex queries an external approximate-nearest-neighbor
// index over its JSON HTTP API.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/retry"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
	"github.com/infinitum-cloud/infinitum/internal/metrics"
)

// Config holds vector index connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Namespace  string
	Policy     retry.Policy
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a vector index query client.
type Client struct {
	baseURL   string
	apiKey    string
	namespace string
	policy    retry.Policy
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a vector index client.
func NewClient(cfg *Config) *Client {
	policy := cfg.Policy
	if policy.MaxAttempts() == 0 {
		policy = retry.DefaultPolicy()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: policy.CallTimeout()}
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		policy:    policy,
		http:      httpClient,
		logger:    cfg.Logger,
	}
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"top_k"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"include_metadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

// Query runs an ANN search and returns vector-sourced candidates in index
// order. Metadata filters are applied client-side after the query, so the
// result may hold fewer than topK candidates.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filters filter.Set) ([]candidate.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}

	body, err := json.Marshal(queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       c.namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var parsed queryResponse
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := c.post(ctx, "/query", body, &parsed)
		duration := time.Since(start)

		if err != nil {
			metrics.RetrievalSourceRequestsTotal.WithLabelValues("vector", "error").Inc()
			return err
		}
		metrics.RetrievalSourceRequestsTotal.WithLabelValues("vector", "success").Inc()
		metrics.RetrievalSourceDuration.WithLabelValues("vector").Observe(duration.Seconds())
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(parsed.Matches))
	rank := 0
	for _, m := range parsed.Matches {
		if !filters.Matches(m.Metadata) {
			continue
		}
		out = append(out, candidate.New(
			m.ID,
			m.Metadata["title"],
			m.Metadata["description"],
			m.Metadata,
			m.Score,
			candidate.Vector,
			rank,
		))
		rank++
	}
	return out, nil
}

// HealthCheck probes the index health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("index health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("index request: %w", domain.ErrIndexUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index status %d: %s: %w", resp.StatusCode, payload, domain.ErrIndexUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode index response: %w", domain.ErrIndexUnavailable)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}
}
