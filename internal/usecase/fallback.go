package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/infrastructure/metrics"
	"github.com/hszk-dev/audiostream/internal/upstream"
)

// Endpoint is one alternative source in the fallback chain.
type Endpoint struct {
	// Name identifies the endpoint in logs and in Result.ResolvedVia.
	Name string
	// URLTemplate is passed to the resolver, with {id} substituted.
	URLTemplate string
	Resolver    upstream.Resolver
}

// FallbackOutcome is the result of walking the fallback chain.
type FallbackOutcome struct {
	Response *model.RawResponse
	// Endpoint is the name of the endpoint that produced Response.
	Endpoint  string
	Tried     int
	SawAbsent bool
	LastErr   error
	// Malformed holds the payloads of endpoints that answered with something
	// undecodable, in the order they were tried.
	Malformed []*upstream.MalformedPayloadError
}

// FallbackChain tries alternative endpoints in order, once each.
type FallbackChain struct {
	endpoints []Endpoint
	identity  model.Identity
}

// NewFallbackChain creates a chain over endpoints using a fixed identity.
func NewFallbackChain(endpoints []Endpoint, identity model.Identity) *FallbackChain {
	return &FallbackChain{
		endpoints: append([]Endpoint(nil), endpoints...),
		identity:  identity,
	}
}

// Len returns the number of configured endpoints.
func (c *FallbackChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.endpoints)
}

// Run tries each endpoint until one returns a usable response.
// A malformed payload is recorded and the walk moves on to the next endpoint.
// The returned error is non-nil only when ctx ends the walk.
func (c *FallbackChain) Run(ctx context.Context, id string) (FallbackOutcome, error) {
	var out FallbackOutcome
	if c == nil {
		return out, nil
	}

	for _, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Tried++

		raw, err := ep.Resolver.Resolve(ctx, upstream.Request{
			ID:       id,
			URL:      upstream.ExpandURL(ep.URLTemplate, id),
			Identity: c.identity,
		})
		switch {
		case err == nil && raw != nil:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StageFallback, metrics.AttemptUsable).Inc()
			out.Response = raw
			out.Endpoint = ep.Name
			slog.Info("fallback endpoint resolved", "id", id, "endpoint", ep.Name)
			return out, nil

		case err == nil:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StageFallback, metrics.AttemptAbsent).Inc()
			out.SawAbsent = true
			slog.Info("fallback endpoint returned no result", "id", id, "endpoint", ep.Name)

		case errors.Is(err, upstream.ErrMalformedPayload):
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StageFallback, metrics.AttemptMalformed).Inc()
			out.LastErr = fmt.Errorf("fallback %s: %w", ep.Name, err)
			var mpe *upstream.MalformedPayloadError
			if errors.As(err, &mpe) {
				out.Malformed = append(out.Malformed, mpe)
			}
			slog.Warn("fallback endpoint returned malformed payload",
				"id", id,
				"endpoint", ep.Name,
				"error", err,
			)

		default:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StageFallback, metrics.AttemptError).Inc()
			out.LastErr = err
			slog.Warn("fallback endpoint failed",
				"id", id,
				"endpoint", ep.Name,
				"error", err,
			)
		}
	}
	return out, nil
}

// ParseEndpoints parses "name=url" pairs into endpoint definitions.
// The resolver for each endpoint is chosen by newResolver from its name.
func ParseEndpoints(specs []string, newResolver func(name string) (upstream.Resolver, error)) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		name, url, ok := strings.Cut(s, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid fallback endpoint %q: want name=url", s)
		}
		r, err := newResolver(name)
		if err != nil {
			return nil, fmt.Errorf("fallback endpoint %q: %w", name, err)
		}
		endpoints = append(endpoints, Endpoint{Name: name, URLTemplate: url, Resolver: r})
	}
	return endpoints, nil
}
