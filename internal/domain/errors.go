package domain

import "errors"

var (
	// ErrInvalidInput signals malformed caller arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAuthInvalid signals a missing or unverifiable credential.
	ErrAuthInvalid = errors.New("invalid credentials")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingUnavailable signals an embedding provider failure after retries.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrIndexUnavailable signals a vector index provider failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrKeywordSearchUnavailable signals a keyword search provider failure.
	ErrKeywordSearchUnavailable = errors.New("keyword search unavailable")
	// ErrLLMUnavailable signals a generative model provider failure.
	ErrLLMUnavailable = errors.New("language model unavailable")
)
