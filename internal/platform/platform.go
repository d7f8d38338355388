package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reviewpulse/backend/internal/models"
)

// ErrorKind classifies a platform fetch failure
type ErrorKind string

const (
	ErrKindAuth      ErrorKind = "auth"
	ErrKindRateLimit ErrorKind = "rate_limit"
	ErrKindNotFound  ErrorKind = "not_found"
	ErrKindTransient ErrorKind = "transient"
)

// Error is a classified fetch failure from an external review platform
type Error struct {
	Platform models.Platform
	Kind     ErrorKind
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s fetch failed (%s): %s", e.Platform, e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified platform error
func NewError(platform models.Platform, kind ErrorKind, message string, cause error) *Error {
	return &Error{Platform: platform, Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind from err, defaulting to transient
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindTransient
}

// RawReview is one review record as returned by a platform API, before
// deduplication and sentiment classification
type RawReview struct {
	ExternalID  string    `json:"external_id"`
	Rating      int       `json:"rating"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
}

// Fetcher fetches raw reviews for one external profile. Implementations must
// be safe to call repeatedly for the same profile; the ingestor dedupes.
type Fetcher interface {
	Platform() models.Platform
	Fetch(ctx context.Context, profileID string, since *time.Time) ([]RawReview, error)
}

// Registry maps platforms to their fetch clients
type Registry struct {
	fetchers map[models.Platform]Fetcher
}

// NewRegistry creates a registry from the given fetchers
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[models.Platform]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[f.Platform()] = f
	}
	return r
}

// Fetcher returns the fetch client for the given platform
func (r *Registry) Fetcher(p models.Platform) (Fetcher, error) {
	f, ok := r.fetchers[p]
	if !ok {
		return nil, fmt.Errorf("no fetch client registered for platform %q", p)
	}
	return f, nil
}
