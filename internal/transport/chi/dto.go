package chi

import (
	"fmt"
	"time"

	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/candidate"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/filter"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
	packagesuc "github.com/infinitum-cloud/infinitum/internal/usecase/packages"
)

// chatRequest is the POST /api/v1/chat payload.
type chatRequest struct {
	Message        string      `json:"message"`
	ConversationID string      `json:"conversation_id,omitempty"`
	UserContext    string      `json:"user_context,omitempty"`
	Limit          *int        `json:"limit,omitempty"`
	Filters        []filterDTO `json:"filters,omitempty"`
	SemanticWeight *float64    `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64    `json:"keyword_weight,omitempty"`
	Threshold      *float64    `json:"similarity_threshold,omitempty"`
}

type filterDTO struct {
	Field string   `json:"field"`
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

type productDTO struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Score       float64           `json:"score"`
	Source      string            `json:"source"`
}

type searchMetadataDTO struct {
	SearchMethod          string   `json:"search_method"`
	Degraded              bool     `json:"degraded"`
	SemanticWeight        float64  `json:"semantic_weight"`
	KeywordWeight         float64  `json:"keyword_weight"`
	StepsCompleted        []string `json:"steps_completed"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
}

// aiMessageDTO is the assistant reply envelope.
type aiMessageDTO struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// chatResponse is the POST /api/v1/chat reply.
type chatResponse struct {
	ConversationID string            `json:"conversation_id"`
	Message        aiMessageDTO      `json:"message"`
	Products       []productDTO      `json:"products"`
	Suggestions    []string          `json:"suggestions"`
	SearchMetadata searchMetadataDTO `json:"search_metadata"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type conversationDTO struct {
	ConversationID string       `json:"conversation_id"`
	Query          string       `json:"query"`
	Messages       []messageDTO `json:"messages"`
	ProductsFound  int          `json:"products_found"`
	Timestamp      time.Time    `json:"timestamp"`
}

type historyResponse struct {
	UserID        string            `json:"user_id"`
	Conversations []conversationDTO `json:"conversations"`
	Total         int               `json:"total"`
}

type deleteHistoryResponse struct {
	UserID  string `json:"user_id"`
	Deleted int    `json:"deleted"`
}

// packageRequest is the POST /api/v1/packages payload. It runs the same
// retrieval pipeline as /chat but returns a package-shaped result.
type packageRequest struct {
	Query       string            `json:"query"`
	UserID      string            `json:"user_id,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type packageResponse struct {
	SessionID             string       `json:"session_id"`
	Status                string       `json:"status"`
	Query                 string       `json:"query,omitempty"`
	Message               string       `json:"message,omitempty"`
	Products              []productDTO `json:"products,omitempty"`
	Suggestions           []string     `json:"suggestions,omitempty"`
	StepsCompleted        []string     `json:"steps_completed"`
	ProductsFound         int          `json:"products_found"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
	CreatedAt             time.Time    `json:"created_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func filtersFromDTO(in []filterDTO) (filter.Set, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(filter.Set, 0, len(in))
	for _, f := range in {
		built, err := filter.New(f.Field, f.Allow, f.Deny)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.Field, err)
		}
		out = append(out, built)
	}
	return out, nil
}

func optionsFromRequest(req chatRequest) (chatuc.Options, error) {
	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		return chatuc.Options{}, err
	}
	return chatuc.Options{
		Limit:          derefInt(req.Limit),
		Filters:        filters,
		SemanticWeight: derefFloat(req.SemanticWeight),
		KeywordWeight:  derefFloat(req.KeywordWeight),
		Threshold:      derefFloat(req.Threshold),
		UserContext:    req.UserContext,
		ConversationID: req.ConversationID,
	}, nil
}

func productsToDTO(rs resultset.ResultSet) []productDTO {
	out := make([]productDTO, 0, rs.Len())
	for _, it := range rs.Items() {
		out = append(out, productToDTO(it))
	}
	return out
}

func productToDTO(c candidate.Candidate) productDTO {
	return productDTO{
		ID:          c.ID(),
		Title:       c.Title(),
		Description: c.Description(),
		Attributes:  c.Attrs(),
		Score:       c.Score(),
		Source:      string(c.Provenance()),
	}
}

func chatResponseToDTO(resp chatuc.Response) chatResponse {
	steps := make([]string, 0, len(resp.Metadata.StepsCompleted))
	for _, s := range resp.Metadata.StepsCompleted {
		steps = append(steps, string(s))
	}
	return chatResponse{
		ConversationID: resp.ConversationID,
		Message:        aiMessageDTO{Type: "ai", Text: resp.Message},
		Products:       productsToDTO(resp.Results),
		Suggestions:    resp.Suggestions,
		SearchMetadata: searchMetadataDTO{
			SearchMethod:          resp.Metadata.SearchMethod,
			Degraded:              resp.Metadata.Degraded,
			SemanticWeight:        resp.Metadata.SemanticWeight,
			KeywordWeight:         resp.Metadata.KeywordWeight,
			StepsCompleted:        steps,
			ProcessingTimeSeconds: resp.Metadata.ProcessingTime.Seconds(),
		},
	}
}

func conversationToDTO(conv conversation.Conversation) conversationDTO {
	msgs := make([]messageDTO, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, messageDTO{
			ID:        m.ID,
			Type:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return conversationDTO{
		ConversationID: conv.ID,
		Query:          conv.Query,
		Messages:       msgs,
		ProductsFound:  conv.ProductsFound,
		Timestamp:      conv.CreatedAt,
	}
}

func packageToDTO(pkg packagesuc.Package) packageResponse {
	return packageResponse{
		SessionID:             pkg.SessionID,
		Status:                "completed",
		Query:                 pkg.Query,
		StepsCompleted:        pkg.StepsCompleted,
		ProductsFound:         pkg.ProductsFound,
		ProcessingTimeSeconds: pkg.ProcessingTimeSeconds,
		CreatedAt:             pkg.CreatedAt,
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
