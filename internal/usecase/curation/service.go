// Package curation turns a ranked result set into a conversational
// response, falling back to a templated summary when the model is down.
package curation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	"github.com/infinitum-cloud/infinitum/internal/transport/openai"
)

// MaxCuratedItems bounds how many results the model (or the fallback
// template) describes.
const MaxCuratedItems = 5

// Curation is the assistant's answer for one query.
type Curation struct {
	Message string
	// Fallback marks responses produced by the template instead of the model.
	Fallback bool
}

// LLM is the consumer interface for curation.
type LLM interface {
	Complete(ctx context.Context, purpose string, msgs []openai.Message) (string, error)
	Stream(ctx context.Context, purpose string, msgs []openai.Message, emit func(delta string) error) (string, error)
}

const systemPrompt = `You are a helpful shopping assistant.
Given a user's query and a ranked list of matching products, write a short,
friendly reply that highlights the best options and why they fit the query.
Mention at most %d products by name. Do not invent products that are not in
the list. If the list is empty, say so and suggest refining the query.`

// Service curates search results via the LLM.
type Service struct {
	llm LLM
	log *zap.Logger
}

// New creates a curation service.
func New(llm LLM, log *zap.Logger) *Service {
	return &Service{llm: llm, log: log}
}

// Curate produces the assistant reply for a query and its results. Never
// returns an error: a dead model yields the templated summary instead.
func (s *Service) Curate(ctx context.Context, query string, rs resultset.ResultSet, userContext string) Curation {
	out, err := s.llm.Complete(ctx, "curation", s.messages(query, rs, userContext))
	if err != nil || strings.TrimSpace(out) == "" {
		s.log.Warn("Curation unavailable, using templated summary", zap.Error(err))
		return Curation{Message: templatedSummary(query, rs), Fallback: true}
	}
	return Curation{Message: out}
}

// CurateStream streams the assistant reply delta by delta. On model failure
// before any output, the templated summary is emitted as a single delta.
func (s *Service) CurateStream(ctx context.Context, query string, rs resultset.ResultSet, userContext string, emit func(delta string) error) (Curation, error) {
	out, err := s.llm.Stream(ctx, "curation", s.messages(query, rs, userContext), emit)
	if err != nil {
		s.log.Warn("Curation stream unavailable, using templated summary", zap.Error(err))
		msg := templatedSummary(query, rs)
		if emitErr := emit(msg); emitErr != nil {
			return Curation{}, fmt.Errorf("emit fallback: %w", emitErr)
		}
		return Curation{Message: msg, Fallback: true}, nil
	}
	return Curation{Message: out}, nil
}

func (s *Service) messages(query string, rs resultset.ResultSet, userContext string) []openai.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n", query)
	if userContext != "" {
		fmt.Fprintf(&sb, "User context: %s\n", userContext)
	}
	sb.WriteString("Products:\n")
	for i, it := range rs.Items() {
		if i == MaxCuratedItems {
			break
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, it.Title())
		if p := it.Attr("price"); p != "" {
			fmt.Fprintf(&sb, " (%s)", p)
		}
		if d := it.Description(); d != "" {
			fmt.Fprintf(&sb, " - %s", truncate(d, 120))
		}
		sb.WriteByte('\n')
	}
	if rs.Len() == 0 {
		sb.WriteString("(no products found)\n")
	}

	return []openai.Message{
		{Role: openai.RoleSystem, Content: fmt.Sprintf(systemPrompt, MaxCuratedItems)},
		{Role: openai.RoleUser, Content: sb.String()},
	}
}

// templatedSummary is the non-AI fallback: a plain listing of the top
// results.
func templatedSummary(query string, rs resultset.ResultSet) string {
	if rs.Len() == 0 {
		return fmt.Sprintf("I couldn't find any products matching %q right now. Try rephrasing your search or using different keywords.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Here are the top matches for %q:\n", query)
	for i, it := range rs.Items() {
		if i == MaxCuratedItems {
			break
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, it.Title())
		if p := it.Attr("price"); p != "" {
			fmt.Fprintf(&sb, " - %s", p)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
