// Package selector picks the single best stream URL out of an upstream response.
package selector

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

// SelectBest returns the preferred stream URL for raw, in priority order:
//  1. the top-level direct URL, if upstream supplied one;
//  2. the audio-only candidate with the highest bitrate, then size;
//  3. the first candidate (in upstream order) that carries audio at all.
//
// Candidates without a URL are never selected. The bool is false when nothing
// qualifies, which is a structural failure of the content and not retryable.
func SelectBest(raw *model.RawResponse) (string, bool) {
	if raw == nil {
		return "", false
	}
	if raw.URL != "" {
		return raw.URL, true
	}

	playable := lo.Filter(raw.Formats, func(c model.CandidateAsset, _ int) bool {
		return c.URL != ""
	})

	audioOnly := lo.Filter(playable, func(c model.CandidateAsset, _ int) bool {
		return c.IsAudioOnly()
	})
	if len(audioOnly) > 0 {
		slices.SortStableFunc(audioOnly, compareQualityDesc)
		return audioOnly[0].URL, true
	}

	withAudio, ok := lo.Find(playable, func(c model.CandidateAsset) bool {
		return c.HasAudio()
	})
	if ok {
		return withAudio.URL, true
	}

	return "", false
}

// compareQualityDesc orders by bitrate, then approximate size, highest first.
func compareQualityDesc(a, b model.CandidateAsset) int {
	if c := cmp.Compare(b.Bitrate, a.Bitrate); c != 0 {
		return c
	}
	return cmp.Compare(b.Size, a.Size)
}
