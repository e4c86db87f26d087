// Package generation models the result of an external generation attempt and its fallback.
package generation

import "example.com/growth/internal/domain"

// Kind tags an Outcome.
type Kind int

const (
	// Unavailable means the gateway produced no result at all.
	Unavailable Kind = iota
	// Rejected means the gateway answered but the answer failed validation.
	Rejected
	// Validated means the answer passed every structural check.
	Validated
)

func (k Kind) String() string {
	switch k {
	case Validated:
		return "validated"
	case Rejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Outcome is the tagged result of an external generation attempt.
type Outcome[T any] struct {
	Kind   Kind
	Value  T
	Reason string
	Err    error
}

// NewValidated wraps a value that passed validation.
func NewValidated[T any](value T) Outcome[T] {
	return Outcome[T]{Kind: Validated, Value: value}
}

// NewRejected records why a gateway answer was discarded.
func NewRejected[T any](reason string) Outcome[T] {
	return Outcome[T]{Kind: Rejected, Reason: reason}
}

// NewUnavailable records a gateway failure. err may be nil when the gateway returned nothing.
func NewUnavailable[T any](err error) Outcome[T] {
	reason := "no result"
	if err != nil {
		reason = err.Error()
	}
	return Outcome[T]{Kind: Unavailable, Reason: reason, Err: err}
}

// Resolve returns the validated value, or the fallback for both Rejected and Unavailable.
func Resolve[T any](outcome Outcome[T], fallback func() T) (T, domain.Source) {
	if outcome.Kind == Validated {
		return outcome.Value, domain.SourceInference
	}
	return fallback(), domain.SourceFallback
}
