// Package packages records search session summaries ("packages"): which
// pipeline steps ran, how many products were found, and how long it took.
package packages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/db"
	"github.com/infinitum-cloud/infinitum/internal/domain"
)

const keyPrefix = "package:"

// DefaultTTL bounds how long session summaries are kept.
const DefaultTTL = 30 * 24 * time.Hour

// Package is one recorded search session summary.
type Package struct {
	SessionID             string    `json:"session_id"`
	Query                 string    `json:"query,omitempty"`
	StepsCompleted        []string  `json:"steps_completed"`
	ProductsFound         int       `json:"products_found"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	CreatedAt             time.Time `json:"created_at"`
}

// store is the consumer interface for package persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service records and retrieves packages.
type Service struct {
	store store
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

// New creates a packages service.
func New(s store, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: s, ttl: ttl, now: time.Now, log: log}
}

// Create validates and persists a package. A missing session id gets a
// generated one; a negative product count or processing time is invalid.
func (s *Service) Create(ctx context.Context, pkg Package) (Package, error) {
	if pkg.ProductsFound < 0 {
		return Package{}, fmt.Errorf("%w: products_found must be non-negative", domain.ErrInvalidInput)
	}
	if pkg.ProcessingTimeSeconds < 0 {
		return Package{}, fmt.Errorf("%w: processing_time_seconds must be non-negative", domain.ErrInvalidInput)
	}
	if pkg.SessionID == "" {
		pkg.SessionID = uuid.NewString()
	}
	pkg.CreatedAt = s.now()

	data, err := json.Marshal(pkg)
	if err != nil {
		return Package{}, fmt.Errorf("marshal package: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, keyPrefix+pkg.SessionID, data, s.ttl); err != nil {
		return Package{}, fmt.Errorf("store package: %w", err)
	}
	return pkg, nil
}

// Get returns a package by session id.
func (s *Service) Get(ctx context.Context, sessionID string) (Package, error) {
	if sessionID == "" {
		return Package{}, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	data, err := s.store.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Package{}, fmt.Errorf("package %s: %w", sessionID, domain.ErrNotFound)
		}
		return Package{}, fmt.Errorf("load package: %w", err)
	}

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Package{}, fmt.Errorf("parse package: %w", err)
	}
	return pkg, nil
}
