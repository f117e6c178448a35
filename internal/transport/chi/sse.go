package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
)

// SSE event names emitted by the chat stream, in pipeline order.
const (
	eventStatus   = "status"
	eventMessage  = "message"
	eventProducts = "products"
	eventComplete = "complete"
	eventError    = "error"
)

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	message := q.Get("message")
	if message == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "message query parameter is required")
		return
	}

	opts, err := optionsFromQuery(q.Get("limit"), q.Get("semantic_weight"), q.Get("keyword_weight"), q.Get("similarity_threshold"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	if _, err := s.chat.Stream(r.Context(), UserIDFromContext(r.Context()), message, s.applyDefaults(opts), sink); err != nil {
		s.logger.Warn("Chat stream failed", zap.Error(err))
		_ = sink.send(eventError, map[string]string{"message": safeDomainMessage(err, streamErrorStatus(err))})
	}
}

// streamErrorStatus classifies a stream failure the same way the JSON
// endpoint would, so error event text follows the same exposure rules.
func streamErrorStatus(err error) int {
	if errors.Is(err, domain.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Status(stage chatuc.Stage) error {
	return s.send(eventStatus, map[string]string{"status": string(stage)})
}

func (s *sseSink) MessageDelta(delta string) error {
	return s.send(eventMessage, map[string]string{"delta": delta})
}

func (s *sseSink) Products(rs resultset.ResultSet) error {
	return s.send(eventProducts, map[string]any{
		"products": productsToDTO(rs),
		"total":    rs.Len(),
	})
}

func (s *sseSink) Complete(resp chatuc.Response) error {
	return s.send(eventComplete, chatResponseToDTO(resp))
}

func (s *sseSink) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}

func optionsFromQuery(limit, semanticWeight, keywordWeight, threshold string) (chatuc.Options, error) {
	var opts chatuc.Options
	if limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return chatuc.Options{}, fmt.Errorf("limit must be a non-negative integer")
		}
		opts.Limit = parsed
	}
	var err error
	if opts.SemanticWeight, err = parseWeight("semantic_weight", semanticWeight); err != nil {
		return chatuc.Options{}, err
	}
	if opts.KeywordWeight, err = parseWeight("keyword_weight", keywordWeight); err != nil {
		return chatuc.Options{}, err
	}
	if opts.Threshold, err = parseWeight("similarity_threshold", threshold); err != nil {
		return chatuc.Options{}, err
	}
	return opts, nil
}

func parseWeight(name, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return parsed, nil
}
