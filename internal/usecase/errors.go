package usecase

import (
	"errors"
	"fmt"
)

// ErrorKind classifies resolution failures. Each kind has its own retry policy
// and caller-facing mapping.
type ErrorKind string

const (
	KindInvalidIdentifier   ErrorKind = "invalid_identifier"
	KindNotFound            ErrorKind = "not_found"
	KindNoPlayableAsset     ErrorKind = "no_playable_asset"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInternal            ErrorKind = "internal"
)

var (
	// ErrInvalidIdentifier is returned for malformed identifiers, before any network activity.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNotFound is returned when upstream cleanly reports no such item after all retries and fallbacks.
	ErrNotFound = errors.New("media not found")

	// ErrNoPlayableAsset is returned when upstream data has no acceptable stream.
	ErrNoPlayableAsset = errors.New("no playable audio asset")

	// ErrUpstreamUnavailable is returned when every retry and fallback endpoint failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInternal is returned for unexpected pipeline failures.
	ErrInternal = errors.New("internal resolution failure")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidIdentifier:
		return ErrInvalidIdentifier
	case KindNotFound:
		return ErrNotFound
	case KindNoPlayableAsset:
		return ErrNoPlayableAsset
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	default:
		return ErrInternal
	}
}

// ResolveError is the typed failure returned by the resolution pipeline.
type ResolveError struct {
	Kind    ErrorKind
	ID      string
	Attempt int
	Err     error
}

func newResolveError(kind ErrorKind, id string, attempt int, err error) *ResolveError {
	return &ResolveError{Kind: kind, ID: id, Attempt: attempt, Err: err}
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: %v", e.ID, e.Kind.sentinel())
	}
	return fmt.Sprintf("resolve %s: %v: %v", e.ID, e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the error kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
