package domain

// Outcome is the result of a best-effort external call.
// A degraded outcome carries a usable zero value plus the reason the source
// was skipped; callers merge what they have instead of failing the request.
type Outcome[T any] struct {
	value    T
	degraded bool
	reason   string
	err      error
}

// Ok creates a successful outcome.
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{value: value}
}

// Degraded creates an outcome for a source that failed soft.
// err is kept for logging; reason is a short machine-readable tag.
func Degraded[T any](reason string, err error) Outcome[T] {
	return Outcome[T]{degraded: true, reason: reason, err: err}
}

// Value returns the carried value (zero value when degraded).
func (o Outcome[T]) Value() T { return o.value }

// IsDegraded reports whether the source failed soft.
func (o Outcome[T]) IsDegraded() bool { return o.degraded }

// Reason returns the degradation tag ("" when ok).
func (o Outcome[T]) Reason() string { return o.reason }

// Err returns the underlying error (nil when ok).
func (o Outcome[T]) Err() error { return o.err }
