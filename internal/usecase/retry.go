package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/infrastructure/metrics"
	"github.com/hszk-dev/audiostream/internal/upstream"
)

// DefaultMaxAttempts is the number of primary attempts before falling back.
const DefaultMaxAttempts = 3

// AttemptState is the state of the retry state machine.
type AttemptState string

const (
	StateAttempting AttemptState = "ATTEMPTING"
	StateSucceeded  AttemptState = "SUCCEEDED"
	StateExhausted  AttemptState = "EXHAUSTED"
)

// Random is the randomness source for identity rotation and backoff jitter.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	IntN(n int) int
	Float64() float64
}

// globalRandom uses the goroutine-safe top-level math/rand/v2 functions.
type globalRandom struct{}

func (globalRandom) IntN(n int) int   { return rand.IntN(n) }
func (globalRandom) Float64() float64 { return rand.Float64() }

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext sleeps for d, returning early with ctx.Err() if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffDelay returns the pause after attempt n (1-based): 2^(n-1) seconds
// plus jitter, where jitter is expected in [0, 1).
func BackoffDelay(n int, jitter float64) time.Duration {
	secs := math.Pow(2, float64(n-1)) + jitter
	return time.Duration(secs * float64(time.Second))
}

// Attempts is the outcome of a primary retry run.
type Attempts struct {
	State    AttemptState
	Response *model.RawResponse
	// Count is the number of attempts actually made.
	Count int
	// SawAbsent is set when at least one attempt cleanly reported no result.
	SawAbsent bool
	LastErr   error
	// Slept is the total backoff time requested between attempts.
	Slept time.Duration
}

// RetryOption configures a RetryOrchestrator.
type RetryOption func(*RetryOrchestrator)

// WithRandom overrides the randomness source.
func WithRandom(r Random) RetryOption {
	return func(o *RetryOrchestrator) {
		o.random = r
	}
}

// WithSleeper overrides how backoff pauses are taken.
func WithSleeper(s Sleeper) RetryOption {
	return func(o *RetryOrchestrator) {
		o.sleep = s
	}
}

// WithMaxAttempts overrides the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) RetryOption {
	return func(o *RetryOrchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// RetryOrchestrator drives repeated primary attempts with identity rotation
// and exponential backoff.
type RetryOrchestrator struct {
	resolver    upstream.Resolver
	identities  *upstream.IdentityPool
	urlTemplate string
	maxAttempts int
	random      Random
	sleep       Sleeper
}

// NewRetryOrchestrator creates a RetryOrchestrator for the primary resolver.
// urlTemplate may contain an {id} placeholder; empty means the canonical watch URL.
func NewRetryOrchestrator(
	resolver upstream.Resolver,
	identities *upstream.IdentityPool,
	urlTemplate string,
	opts ...RetryOption,
) *RetryOrchestrator {
	o := &RetryOrchestrator{
		resolver:    resolver,
		identities:  identities,
		urlTemplate: urlTemplate,
		maxAttempts: DefaultMaxAttempts,
		random:      globalRandom{},
		sleep:       SleepWithContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.identities == nil {
		o.identities = upstream.NewIdentityPool(nil)
	}
	return o
}

// MaxAttempts returns the attempt budget.
func (o *RetryOrchestrator) MaxAttempts() int {
	return o.maxAttempts
}

func (o *RetryOrchestrator) targetURL(id string) string {
	if o.urlTemplate == "" {
		return model.WatchURL(id)
	}
	return upstream.ExpandURL(o.urlTemplate, id)
}

// Run performs up to MaxAttempts attempts for id.
//
// A non-nil error is returned only for terminal conditions: a malformed
// upstream payload or a cancelled context. Exhaustion is reported through
// Attempts.State.
func (o *RetryOrchestrator) Run(ctx context.Context, id string) (Attempts, error) {
	out := Attempts{State: StateAttempting}
	url := o.targetURL(id)
	previousUA := ""

	for n := 1; n <= o.maxAttempts; n++ {
		identity := o.identities.Rotate(o.random.IntN, previousUA, n > 1)
		previousUA = identity.UserAgent
		out.Count = n

		raw, err := o.resolver.Resolve(ctx, upstream.Request{ID: id, URL: url, Identity: identity})
		switch {
		case err == nil && raw != nil:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StagePrimary, metrics.AttemptUsable).Inc()
			out.State = StateSucceeded
			out.Response = raw
			return out, nil

		case err == nil:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StagePrimary, metrics.AttemptAbsent).Inc()
			out.SawAbsent = true
			slog.Info("primary attempt returned no result", "id", id, "attempt", n)

		case errors.Is(err, upstream.ErrMalformedPayload):
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StagePrimary, metrics.AttemptMalformed).Inc()
			out.LastErr = err
			return out, err

		default:
			metrics.UpstreamAttemptsTotal.WithLabelValues(metrics.StagePrimary, metrics.AttemptError).Inc()
			out.LastErr = err
			slog.Warn("primary attempt failed",
				"id", id,
				"attempt", n,
				"error", err,
			)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if n == o.maxAttempts {
			break
		}

		delay := BackoffDelay(n, o.random.Float64())
		out.Slept += delay
		metrics.RetryBackoffSeconds.Observe(delay.Seconds())
		if err := o.sleep(ctx, delay); err != nil {
			return out, err
		}
	}

	out.State = StateExhausted
	return out, nil
}
