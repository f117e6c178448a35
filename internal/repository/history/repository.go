// Package history persists chat conversations in a key-value store.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/db"
	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
)

const keyPrefix = "chat:"

// DefaultLimit bounds how many conversations a listing returns.
const DefaultLimit = 20

// store is the consumer interface for the history repository (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repository stores conversations keyed by user and conversation id.
type Repository struct {
	store  store
	ttl    time.Duration // zero means no expiry
	logger *zap.Logger
}

// New creates a history repository.
func New(s store, ttl time.Duration, logger *zap.Logger) *Repository {
	return &Repository{store: s, ttl: ttl, logger: logger}
}

// Save persists a conversation. The stored query text is truncated.
func (r *Repository) Save(ctx context.Context, conv conversation.Conversation) error {
	conv.Query = conversation.TruncateQuery(conv.Query)

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	key := r.key(conv.UserID, conv.ID)
	if r.ttl > 0 {
		err = r.store.SetWithTTL(ctx, key, data, r.ttl)
	} else {
		err = r.store.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// List returns a user's conversations, newest first, up to limit.
// Unreadable entries are skipped with a warning so one corrupt record
// never breaks the whole history view.
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	keys, err := r.store.Scan(ctx, keyPrefix+userID+":*")
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}

	convs := make([]conversation.Conversation, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Failed to load conversation", zap.String("key", key), zap.Error(err))
			continue
		}
		var conv conversation.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			r.logger.Warn("Failed to parse conversation", zap.String("key", key), zap.Error(err))
			continue
		}
		convs = append(convs, conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	if len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// DeleteConversation removes a single conversation. Missing conversations
// report domain.ErrNotFound.
func (r *Repository) DeleteConversation(ctx context.Context, userID, convID string) error {
	key := r.key(userID, convID)
	if _, err := r.store.Get(ctx, key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("conversation %s: %w", convID, domain.ErrNotFound)
		}
		return fmt.Errorf("load conversation: %w", err)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// Delete removes all of a user's conversations and returns how many were
// deleted.
func (r *Repository) Delete(ctx context.Context, userID string) (int, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+userID+":*")
	if err != nil {
		return 0, fmt.Errorf("scan history: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return deleted, fmt.Errorf("delete conversation: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (r *Repository) key(userID, convID string) string {
	return keyPrefix + userID + ":" + convID
}
