// Package chat runs the conversational pipeline: intent extraction,
// hybrid retrieval, curation, and history persistence.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
)

// Stage is a pipeline checkpoint, reported to streaming clients.
type Stage string

// Pipeline stages in execution order.
const (
	StageReceived        Stage = "received"
	StageIntentExtracted Stage = "intent_extracted"
	StageRetrieving      Stage = "retrieving"
	StageCurating        Stage = "curating"
	StageResponded       Stage = "responded"
)

// Options tune a single chat exchange. Zero values pick the retrieval
// defaults.
type Options struct {
	Limit          int
	Filters        filter.Set
	VectorK        int
	KeywordK       int
	SemanticWeight float64
	KeywordWeight  float64
	Threshold      float64
	// UserContext overrides the derived curation context (preferences,
	// interaction history supplied by the caller).
	UserContext string
	// ConversationID continues an existing conversation; empty starts a
	// new one.
	ConversationID string
}

// Metadata describes how a response was produced.
type Metadata struct {
	SearchMethod   string
	Degraded       bool
	SemanticWeight float64
	KeywordWeight  float64
	StepsCompleted []Stage
	ProcessingTime time.Duration
}

// Response is a finished chat exchange.
type Response struct {
	ConversationID string
	Message        string
	Results        resultset.ResultSet
	Suggestions    []string
	Metadata       Metadata
}

// Service runs the chat pipeline.
type Service struct {
	intents IntentExtractor
	search  Retriever
	curator Curator
	history HistoryWriter
	now     func() time.Time
	log     *zap.Logger
}

// New creates a chat service. history may be nil to disable persistence.
func New(intents IntentExtractor, search Retriever, curator Curator, history HistoryWriter, log *zap.Logger) *Service {
	return &Service{
		intents: intents,
		search:  search,
		curator: curator,
		history: history,
		now:     time.Now,
		log:     log,
	}
}

// Ask runs the full pipeline and returns the finished response.
// Only invalid input surfaces as an error; provider failures degrade.
func (s *Service) Ask(ctx context.Context, userID, query string, opts Options) (Response, error) {
	return s.run(ctx, userID, query, opts, nil)
}

// Stream runs the pipeline, reporting progress and message deltas to sink.
// The returned response is the same one delivered via sink.Complete.
func (s *Service) Stream(ctx context.Context, userID, query string, opts Options, sink Sink) (Response, error) {
	return s.run(ctx, userID, query, opts, sink)
}

func (s *Service) run(ctx context.Context, userID, query string, opts Options, sink Sink) (Response, error) {
	start := s.now()
	steps := []Stage{StageReceived}
	if err := notifyStatus(sink, StageReceived); err != nil {
		return Response{}, err
	}

	it := s.intents.Extract(ctx, query)
	steps = append(steps, StageIntentExtracted)
	if err := notifyStatus(sink, StageIntentExtracted); err != nil {
		return Response{}, err
	}

	req, err := request.New(
		query, it.Keywords, opts.Filters,
		normalizeLimit(opts.Limit), opts.VectorK, opts.KeywordK,
		opts.SemanticWeight, opts.KeywordWeight, opts.Threshold,
	)
	if err != nil {
		return Response{}, err
	}

	if err := notifyStatus(sink, StageRetrieving); err != nil {
		return Response{}, err
	}
	rs, err := s.search.Retrieve(ctx, &req)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}
	steps = append(steps, StageRetrieving)

	if err := notifyStatus(sink, StageCurating); err != nil {
		return Response{}, err
	}
	userCtx := opts.UserContext
	if userCtx == "" {
		userCtx = userContext(userID)
	}
	cur, err := s.curate(ctx, query, rs, userCtx, sink)
	if err != nil {
		return Response{}, err
	}
	steps = append(steps, StageCurating, StageResponded)

	convID := opts.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	resp := Response{
		ConversationID: convID,
		Message:        cur.Message,
		Results:        rs,
		Suggestions:    suggestions(it, rs),
		Metadata: Metadata{
			SearchMethod:   string(rs.Method()),
			Degraded:       rs.Degraded() || cur.Fallback || it.Fallback,
			SemanticWeight: req.SemanticWeight(),
			KeywordWeight:  req.KeywordWeight(),
			StepsCompleted: steps,
			ProcessingTime: s.now().Sub(start),
		},
	}

	s.persist(ctx, userID, query, resp)

	if sink != nil {
		if err := sink.Products(rs); err != nil {
			return Response{}, fmt.Errorf("send products: %w", err)
		}
		if err := sink.Complete(resp); err != nil {
			return Response{}, fmt.Errorf("send complete: %w", err)
		}
	}
	return resp, nil
}

func (s *Service) curate(ctx context.Context, query string, rs resultset.ResultSet, userCtx string, sink Sink) (cur curationResult, err error) {
	if sink == nil {
		c := s.curator.Curate(ctx, query, rs, userCtx)
		return curationResult{Message: c.Message, Fallback: c.Fallback}, nil
	}
	c, err := s.curator.CurateStream(ctx, query, rs, userCtx, sink.MessageDelta)
	if err != nil {
		return curationResult{}, fmt.Errorf("curate stream: %w", err)
	}
	return curationResult{Message: c.Message, Fallback: c.Fallback}, nil
}

type curationResult struct {
	Message  string
	Fallback bool
}

// persist saves the conversation; storage failures are logged, never
// surfaced to the caller.
func (s *Service) persist(ctx context.Context, userID, query string, resp Response) {
	if s.history == nil || userID == "" {
		return
	}
	now := s.now()
	conv := conversation.Conversation{
		ID:     resp.ConversationID,
		UserID: userID,
		Query:  query,
		Messages: []conversation.Message{
			{ID: uuid.NewString(), Role: conversation.RoleUser, Content: query, Timestamp: now},
			{ID: uuid.NewString(), Role: conversation.RoleAI, Content: resp.Message, Timestamp: now},
		},
		ProductsFound: resp.Results.Len(),
		CreatedAt:     now,
	}
	if err := s.history.Save(ctx, conv); err != nil {
		s.log.Warn("Failed to save conversation", zap.String("user_id", userID), zap.Error(err))
	}
}

func notifyStatus(sink Sink, stage Stage) error {
	if sink == nil {
		return nil
	}
	if err := sink.Status(stage); err != nil {
		return fmt.Errorf("send status %s: %w", stage, err)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return request.DefaultLimit
	}
	return limit
}

// userContext gives the curator a hint about who is asking. Guests get no
// personalization.
func userContext(userID string) string {
	if userID == "" {
		return ""
	}
	return "returning user " + userID
}
