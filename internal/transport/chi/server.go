// Package chi exposes the conversational search pipeline over HTTP:
// a JSON chat endpoint, an SSE stream, a WebSocket channel, chat history,
// session packages, and health probes.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/conversation"
	chatuc "github.com/infinitum-cloud/infinitum/internal/usecase/chat"
	"github.com/infinitum-cloud/infinitum/internal/usecase/health"
	packagesuc "github.com/infinitum-cloud/infinitum/internal/usecase/packages"
)

// ChatService runs the conversational pipeline (ISP).
type ChatService interface {
	Ask(ctx context.Context, userID, query string, opts chatuc.Options) (chatuc.Response, error)
	Stream(ctx context.Context, userID, query string, opts chatuc.Options, sink chatuc.Sink) (chatuc.Response, error)
}

// HistoryService reads and clears stored conversations (ISP).
type HistoryService interface {
	List(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error)
	Delete(ctx context.Context, userID string) (int, error)
	DeleteConversation(ctx context.Context, userID, convID string) error
}

// PackageService records and retrieves search session summaries (ISP).
type PackageService interface {
	Create(ctx context.Context, pkg packagesuc.Package) (packagesuc.Package, error)
	Get(ctx context.Context, sessionID string) (packagesuc.Package, error)
}

// HealthService aggregates component health (ISP).
type HealthService interface {
	Check(ctx context.Context) health.Report
}

// Server implements the HTTP API.
type Server struct {
	chat     ChatService
	history  HistoryService
	packages PackageService
	health   HealthService
	auth     *Authenticator
	limiter  *RateLimiter
	logger   *zap.Logger
	defaults chatuc.Options

	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. auth and limiter may be nil to
// disable authentication and rate limiting respectively; history and
// packages may be nil when their backing store is not configured.
func NewServer(chat ChatService, history HistoryService, packages PackageService, healthSvc HealthService, auth *Authenticator, limiter *RateLimiter, logger *zap.Logger) *Server {
	return &Server{
		chat:     chat,
		history:  history,
		packages: packages,
		health:   healthSvc,
		auth:     auth,
		limiter:  limiter,
		logger:   logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"),
			sentinelHandler(domain.ErrAuthInvalid, http.StatusUnauthorized, "unauthorized"),
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
			sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
			sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, "service_unavailable"),
			sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, "service_unavailable"),
			sentinelHandler(domain.ErrKeywordSearchUnavailable, http.StatusServiceUnavailable, "service_unavailable"),
			sentinelHandler(domain.ErrLLMUnavailable, http.StatusServiceUnavailable, "service_unavailable"),
		},
	}
}

// WithSearchDefaults sets server-side retrieval tuning applied to requests
// that leave the corresponding option unset.
func (s *Server) WithSearchDefaults(defaults chatuc.Options) *Server {
	s.defaults = defaults
	return s
}

// applyDefaults fills unset per-request options from the server defaults.
// Source fan-out sizes are never client-settable.
func (s *Server) applyDefaults(opts chatuc.Options) chatuc.Options {
	opts.VectorK = s.defaults.VectorK
	opts.KeywordK = s.defaults.KeywordK
	if opts.Limit == 0 {
		opts.Limit = s.defaults.Limit
	}
	if opts.SemanticWeight == 0 {
		opts.SemanticWeight = s.defaults.SemanticWeight
	}
	if opts.KeywordWeight == 0 {
		opts.KeywordWeight = s.defaults.KeywordWeight
	}
	if opts.Threshold == 0 {
		opts.Threshold = s.defaults.Threshold
	}
	return opts
}

// Routes registers every API route on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.handleLiveness)
	r.Get("/health/detailed", s.handleHealthDetailed)

	r.Route("/api/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/chat", s.handleChat)
		r.Get("/chat/stream", s.handleChatStream)
		r.Get("/chat/ws/{user_id}", s.handleChatWS)
		r.Get("/chat/history", s.handleHistoryList)
		r.Delete("/chat/history", s.handleHistoryDelete)
		r.Delete("/chat/history/{conversation_id}", s.handleHistoryDeleteOne)
		r.Post("/packages", s.handlePackageCreate)
		r.Get("/packages/{session_id}", s.handlePackageGet)
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be valid JSON")
		return
	}

	opts, err := optionsFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	resp, err := s.chat.Ask(r.Context(), UserIDFromContext(r.Context()), req.Message, s.applyDefaults(opts))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponseToDTO(resp))
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "chat history is not enabled")
		return
	}
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "chat history requires authentication")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	convs, err := s.history.List(r.Context(), userID, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]conversationDTO, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationToDTO(c))
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Conversations: out, Total: len(out)})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "chat history is not enabled")
		return
	}
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "chat history requires authentication")
		return
	}

	deleted, err := s.history.Delete(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteHistoryResponse{UserID: userID, Deleted: deleted})
}

func (s *Server) handleHistoryDeleteOne(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "chat history is not enabled")
		return
	}
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "chat history requires authentication")
		return
	}

	convID := chi.URLParam(r, "conversation_id")
	if err := s.history.DeleteConversation(r.Context(), userID, convID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":         userID,
		"conversation_id": convID,
		"status":          "deleted",
	})
}

// handlePackageCreate runs the full retrieval pipeline for a query and
// records the resulting session summary.
func (s *Server) handlePackageCreate(w http.ResponseWriter, r *http.Request) {
	if s.packages == nil {
		writeError(w, http.StatusNotFound, "not_found", "packages are not enabled")
		return
	}

	var req packageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be valid JSON")
		return
	}

	userID := UserIDFromContext(r.Context())
	if userID == "" {
		userID = req.UserID
	}

	resp, err := s.chat.Ask(r.Context(), userID, req.Query, s.applyDefaults(chatuc.Options{
		UserContext: preferencesContext(req.Preferences),
	}))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	steps := make([]string, 0, len(resp.Metadata.StepsCompleted))
	for _, st := range resp.Metadata.StepsCompleted {
		steps = append(steps, string(st))
	}
	created, err := s.packages.Create(r.Context(), packagesuc.Package{
		SessionID:             resp.ConversationID,
		Query:                 req.Query,
		StepsCompleted:        steps,
		ProductsFound:         resp.Results.Len(),
		ProcessingTimeSeconds: resp.Metadata.ProcessingTime.Seconds(),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := packageToDTO(created)
	out.Message = resp.Message
	out.Products = productsToDTO(resp.Results)
	out.Suggestions = resp.Suggestions
	writeJSON(w, http.StatusCreated, out)
}

// preferencesContext flattens caller preferences into a curation hint.
func preferencesContext(prefs map[string]string) string {
	if len(prefs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+prefs[k])
	}
	return "preferences: " + strings.Join(parts, ", ")
}

func (s *Server) handlePackageGet(w http.ResponseWriter, r *http.Request) {
	if s.packages == nil {
		writeError(w, http.StatusNotFound, "not_found", "packages are not enabled")
		return
	}

	pkg, err := s.packages.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packageToDTO(pkg))
}

// --- Error handling ---

// errorHandler writes a response for errors it recognizes and reports
// whether it handled the error.
type errorHandler func(w http.ResponseWriter, err error) bool

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err, status))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, handle := range s.errorHandlers {
		if handle(w, err) {
			return
		}
	}
	s.logger.Error("Unhandled request error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// safeDomainMessage exposes error text for client errors only; server-side
// failure details stay in the logs.
func safeDomainMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "service temporarily unavailable"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
