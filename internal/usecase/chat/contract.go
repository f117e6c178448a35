package chat

import (
	"context"

	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/request"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	"github.com/infinitum-cloud/infinitum/internal/usecase/curation"
	"github.com/infinitum-cloud/infinitum/internal/usecase/intent"
)

// IntentExtractor turns a raw query into search intent.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) intent.Intent
}

// Retriever produces a ranked result set for a search request.
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) (resultset.ResultSet, error)
}

// Curator writes the assistant reply for a query and its results.
type Curator interface {
	Curate(ctx context.Context, query string, rs resultset.ResultSet, userContext string) curation.Curation
	CurateStream(ctx context.Context, query string, rs resultset.ResultSet, userContext string, emit func(delta string) error) (curation.Curation, error)
}

// HistoryWriter persists finished conversations.
type HistoryWriter interface {
	Save(ctx context.Context, conv conversation.Conversation) error
}

// Sink receives pipeline progress during a streamed chat exchange.
// Implementations adapt it to SSE events or WebSocket frames.
type Sink interface {
	Status(stage Stage) error
	MessageDelta(delta string) error
	Products(rs resultset.ResultSet) error
	Complete(resp Response) error
}
