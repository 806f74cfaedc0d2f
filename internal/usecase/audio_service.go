package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/infrastructure/metrics"
	"github.com/hszk-dev/audiostream/internal/selector"
	"github.com/hszk-dev/audiostream/internal/upstream"
)

// DefaultResolveTimeout bounds a whole pipeline run.
const DefaultResolveTimeout = 90 * time.Second

// SourcePrimary is the ResolvedVia value for results from the primary resolver.
const SourcePrimary = "primary"

// ResolveOutput is the result of ResolveAudio.
type ResolveOutput struct {
	Result *model.Result
	// Cached is set when the result was served without contacting upstream.
	Cached bool
}

// AudioService defines the interface for audio resolution use cases.
type AudioService interface {
	// ResolveAudio turns a media identifier into a playable stream record.
	// Failures are returned as *ResolveError.
	ResolveAudio(ctx context.Context, id string) (*ResolveOutput, error)
}

// AudioServiceConfig holds configuration for the resolution pipeline.
type AudioServiceConfig struct {
	// ResolveTimeout bounds one pipeline run. Zero disables the bound.
	ResolveTimeout time.Duration
}

// DefaultAudioServiceConfig returns the default configuration.
func DefaultAudioServiceConfig() AudioServiceConfig {
	return AudioServiceConfig{
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// audioService implements AudioService without any caching.
type audioService struct {
	retry    *RetryOrchestrator
	fallback *FallbackChain
	archive  repository.PayloadArchive
	history  repository.ResolutionLog
	timeout  time.Duration
	now      func() time.Time
}

// NewAudioService creates the resolution pipeline.
// archive and history are optional and may be nil.
func NewAudioService(
	retry *RetryOrchestrator,
	fallback *FallbackChain,
	archive repository.PayloadArchive,
	history repository.ResolutionLog,
	cfg AudioServiceConfig,
) AudioService {
	return &audioService{
		retry:    retry,
		fallback: fallback,
		archive:  archive,
		history:  history,
		timeout:  cfg.ResolveTimeout,
		now:      time.Now,
	}
}

// pipelineRun tracks bookkeeping for one resolution.
type pipelineRun struct {
	source   string
	attempts int
}

// ResolveAudio runs retry, fallback, selection and result construction.
func (s *audioService) ResolveAudio(ctx context.Context, id string) (*ResolveOutput, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, newResolveError(KindInvalidIdentifier, id, 0, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	run := &pipelineRun{}
	result, err := s.resolve(ctx, id, run)
	s.record(ctx, id, run, result, err, s.now().Sub(start))
	if err != nil {
		return nil, err
	}
	return &ResolveOutput{Result: result}, nil
}

func (s *audioService) resolve(ctx context.Context, id string, run *pipelineRun) (*model.Result, error) {
	attempts, err := s.retry.Run(ctx, id)
	run.attempts = attempts.Count
	if err != nil {
		return nil, s.terminal(ctx, id, run.attempts, err)
	}

	raw := attempts.Response
	source := SourcePrimary
	sawAbsent := attempts.SawAbsent
	lastErr := attempts.LastErr

	if attempts.State == StateExhausted {
		slog.Warn("primary attempts exhausted, trying fallback endpoints",
			"id", id,
			"attempts", attempts.Count,
			"endpoints", s.fallback.Len(),
		)

		fb, err := s.fallback.Run(ctx, id)
		run.attempts += fb.Tried
		if err != nil {
			return nil, s.terminal(ctx, id, run.attempts, err)
		}
		if fb.SawAbsent {
			sawAbsent = true
		}
		if fb.LastErr != nil {
			lastErr = fb.LastErr
		}
		for _, mpe := range fb.Malformed {
			s.archivePayload(ctx, id, mpe)
		}
		if fb.Response == nil {
			if n := len(fb.Malformed); n > 0 {
				return nil, newResolveError(KindInternal, id, run.attempts, fb.Malformed[n-1])
			}
			if sawAbsent {
				return nil, newResolveError(KindNotFound, id, run.attempts, lastErr)
			}
			return nil, newResolveError(KindUpstreamUnavailable, id, run.attempts, lastErr)
		}
		raw = fb.Response
		source = fb.Endpoint
	}
	run.source = source

	streamURL, ok := selector.SelectBest(raw)
	if !ok {
		return nil, newResolveError(KindNoPlayableAsset, id, run.attempts, nil)
	}

	result, err := model.NewResult(id, raw, streamURL, source, s.now())
	if err != nil {
		return nil, newResolveError(KindInternal, id, run.attempts, err)
	}
	return result, nil
}

// terminal classifies an error that ended the pipeline early.
func (s *audioService) terminal(ctx context.Context, id string, attempt int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newResolveError(KindUpstreamUnavailable, id, attempt, err)
	}

	var mpe *upstream.MalformedPayloadError
	if errors.As(err, &mpe) {
		s.archivePayload(ctx, id, mpe)
	}
	return newResolveError(KindInternal, id, attempt, err)
}

func (s *audioService) archivePayload(ctx context.Context, id string, mpe *upstream.MalformedPayloadError) {
	if s.archive == nil || len(mpe.Payload) == 0 {
		return
	}
	key, err := s.archive.Archive(ctx, id, s.now(), mpe.Payload)
	if err != nil {
		metrics.ArchivedPayloadsTotal.WithLabelValues(metrics.CacheStatusError).Inc()
		slog.Warn("failed to archive malformed payload",
			"id", id,
			"source", mpe.Source,
			"error", err,
		)
		return
	}
	metrics.ArchivedPayloadsTotal.WithLabelValues(metrics.CacheStatusSuccess).Inc()
	slog.Info("archived malformed payload", "id", id, "source", mpe.Source, "key", key)
}

// record logs failures and appends the outcome to the resolution log.
// Errors writing the log are logged only.
func (s *audioService) record(ctx context.Context, id string, run *pipelineRun, result *model.Result, err error, elapsed time.Duration) {
	outcome := metrics.OutcomeSuccess
	kind := ""
	if err != nil {
		outcome = metrics.OutcomeFailure
		kind = string(KindOf(err))

		level := slog.LevelWarn
		if KindOf(err) == KindInternal {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "resolution failed",
			"id", id,
			"attempt", run.attempts,
			"kind", kind,
			"error", err,
		)
	}
	metrics.ResolutionsTotal.WithLabelValues(outcome, kind).Inc()
	metrics.ResolutionDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if s.history == nil {
		return
	}

	entry := &repository.Resolution{
		ID:        uuid.New(),
		MediaID:   id,
		Outcome:   outcome,
		Source:    run.source,
		Attempts:  run.attempts,
		ErrorKind: kind,
		Duration:  elapsed,
		CreatedAt: s.now(),
	}
	if result != nil {
		entry.Source = result.ResolvedVia
	}

	// The pipeline context may already be expired; the audit write gets its own budget.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(recordCtx, entry); err != nil {
		slog.Warn("failed to record resolution",
			"id", id,
			"error", err,
		)
	}
}
