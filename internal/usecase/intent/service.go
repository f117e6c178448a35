// Package intent extracts search keywords and category hints from a raw
// user query, falling back to naive tokenization when the model is down.
package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/transport/openai"
)

// Intent is the extracted search intent of a query.
type Intent struct {
	Keywords      []string `json:"keywords"`
	CategoryHints []string `json:"category_hints"`
	// Fallback marks intents produced by tokenization instead of the model.
	Fallback bool `json:"-"`
}

// LLM is the consumer interface for intent extraction.
type LLM interface {
	CompleteJSON(ctx context.Context, purpose string, msgs []openai.Message) (string, error)
}

const systemPrompt = `You extract shopping search intent.
Given a user query, respond with a JSON object:
{"keywords": ["..."], "category_hints": ["..."]}
keywords: 1-6 short search terms capturing the product being sought.
category_hints: 0-3 broad product categories.
Respond with JSON only, no prose.`

const strictReask = `Your previous reply was not valid JSON. Respond with ONLY the JSON object, nothing else.`

// Service extracts intent via the LLM.
type Service struct {
	llm LLM
	log *zap.Logger
}

// New creates an intent service.
func New(llm LLM, log *zap.Logger) *Service {
	return &Service{llm: llm, log: log}
}

// Extract returns the query's intent. Garbled model output gets exactly one
// stricter re-ask; any further failure falls back to tokenizing the query.
// Extract never returns an error: a dead model degrades, it doesn't fail.
func (s *Service) Extract(ctx context.Context, query string) Intent {
	out, err := s.llm.CompleteJSON(ctx, "intent", s.messages(query))
	if err != nil {
		s.log.Warn("Intent extraction unavailable, tokenizing query", zap.Error(err))
		return fallbackIntent(query)
	}

	intent, ok := parseIntent(out)
	if !ok {
		msgs := append(s.messages(query), openai.Message{Role: openai.RoleUser, Content: strictReask})
		out, err = s.llm.CompleteJSON(ctx, "intent", msgs)
		if err != nil {
			s.log.Warn("Intent re-ask unavailable, tokenizing query", zap.Error(err))
			return fallbackIntent(query)
		}
		if intent, ok = parseIntent(out); !ok {
			s.log.Warn("Intent re-ask still garbled, tokenizing query", zap.String("output", truncate(out, 200)))
			return fallbackIntent(query)
		}
	}

	if len(intent.Keywords) == 0 {
		return fallbackIntent(query)
	}
	return intent
}

func (s *Service) messages(query string) []openai.Message {
	return []openai.Message{
		{Role: openai.RoleSystem, Content: systemPrompt},
		{Role: openai.RoleUser, Content: query},
	}
}

func parseIntent(out string) (Intent, bool) {
	out = strings.TrimSpace(out)
	// models occasionally wrap JSON in a code fence despite instructions
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")

	var intent Intent
	if err := json.Unmarshal([]byte(out), &intent); err != nil {
		return Intent{}, false
	}
	return intent, true
}

// fallbackIntent tokenizes the raw query into keywords, dropping short
// stopword-like tokens.
func fallbackIntent(query string) Intent {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) < 3 || stopwords[f] {
			continue
		}
		keywords = append(keywords, f)
	}
	if len(keywords) == 0 && query != "" {
		keywords = []string{query}
	}
	return Intent{Keywords: keywords, Fallback: true}
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "you": true, "can": true,
	"need": true, "want": true, "show": true, "find": true, "looking": true,
	"some": true, "any": true, "please": true, "would": true, "like": true,
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
