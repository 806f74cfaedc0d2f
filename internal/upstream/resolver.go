// Package upstream performs single resolution attempts against upstream media sources.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

// ErrMalformedPayload marks an upstream response that could not be decoded.
// Unlike transport failures it is not retried.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// MalformedPayloadError carries the undecodable payload for archiving.
type MalformedPayloadError struct {
	Source  string
	Payload []byte
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Source, ErrMalformedPayload, e.Err)
}

func (e *MalformedPayloadError) Unwrap() []error {
	return []error{ErrMalformedPayload, e.Err}
}

// Request describes one resolution attempt.
type Request struct {
	// ID is the media identifier.
	ID string
	// URL is the page or API base the attempt targets.
	URL string
	// Identity is the request identity to present upstream.
	Identity model.Identity
}

// Resolver performs one blocking resolution attempt.
//
// It returns (nil, nil) when upstream cleanly reports that there is no result,
// and also when the response carries neither a direct URL nor any candidate.
// Any other failure is returned as an error; callers treat errors as
// transient unless they wrap ErrMalformedPayload.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*model.RawResponse, error)
}

// ExpandURL substitutes the media identifier into an endpoint template.
// Templates without an {id} placeholder are returned unchanged.
func ExpandURL(template, id string) string {
	return strings.ReplaceAll(template, "{id}", id)
}

// usable normalises unusable responses to a clean "no result".
func usable(raw *model.RawResponse) *model.RawResponse {
	if !raw.Usable() {
		return nil
	}
	return raw
}
