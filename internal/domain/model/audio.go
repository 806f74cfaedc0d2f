package model

import (
	"errors"
	"strings"
	"time"
)

// IDLength is the fixed length of a media identifier.
const IDLength = 11

var (
	ErrInvalidID     = errors.New("identifier must be 11 characters of [A-Za-z0-9_-]")
	ErrEmptyStream   = errors.New("stream URL cannot be empty")
	ErrResultMissing = errors.New("result cannot be nil")
)

// ValidateID checks that id has the identifier shape before any network activity.
func ValidateID(id string) error {
	if len(id) != IDLength {
		return ErrInvalidID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidID
		}
	}
	return nil
}

// CandidateAsset is one upstream-offered variant of a media item.
// It only lives for the duration of a single resolution attempt.
type CandidateAsset struct {
	URL        string
	AudioCodec string
	VideoCodec string
	// Bitrate in kbit/s. Zero when upstream omits it.
	Bitrate float64
	// Size is the approximate size in bytes. Zero when upstream omits it.
	Size    int64
	Quality string
}

func codecPresent(codec string) bool {
	c := strings.TrimSpace(strings.ToLower(codec))
	return c != "" && c != "none"
}

// HasAudio reports whether the candidate carries an audio stream.
func (c CandidateAsset) HasAudio() bool {
	return codecPresent(c.AudioCodec)
}

// HasVideo reports whether the candidate carries a video stream.
func (c CandidateAsset) HasVideo() bool {
	return codecPresent(c.VideoCodec)
}

// IsAudioOnly reports whether the candidate has audio and no video.
func (c CandidateAsset) IsAudioOnly() bool {
	return c.HasAudio() && !c.HasVideo()
}

// RawResponse is the payload returned by one upstream attempt.
type RawResponse struct {
	ID         string
	Title      string
	Uploader   string
	Duration   float64
	URL        string
	Thumbnail  string
	WebpageURL string
	Formats    []CandidateAsset
}

// Usable reports whether the response carries a direct URL or at least one candidate.
// A nil response is never usable.
func (r *RawResponse) Usable() bool {
	if r == nil {
		return false
	}
	return r.URL != "" || len(r.Formats) > 0
}

// Result is the resolved record returned to callers and stored in the cache.
// It is never mutated after NewResult returns.
type Result struct {
	ID          string
	Title       string
	Artist      string
	Duration    int
	StreamURL   string
	Thumbnail   string
	SourceURL   string
	Success     bool
	ResolvedVia string
	ResolvedAt  time.Time
}

// NewResult builds a successful Result from an upstream response and the selected stream URL.
func NewResult(id string, raw *RawResponse, streamURL, source string, now time.Time) (*Result, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if streamURL == "" {
		return nil, ErrEmptyStream
	}

	r := &Result{
		ID:          id,
		Title:       "Unknown",
		Artist:      "Unknown",
		StreamURL:   streamURL,
		SourceURL:   WatchURL(id),
		Success:     true,
		ResolvedVia: source,
		ResolvedAt:  now,
	}
	if raw != nil {
		if raw.Title != "" {
			r.Title = raw.Title
		}
		if raw.Uploader != "" {
			r.Artist = raw.Uploader
		}
		if raw.Duration > 0 {
			r.Duration = int(raw.Duration)
		}
		r.Thumbnail = raw.Thumbnail
		if raw.WebpageURL != "" {
			r.SourceURL = raw.WebpageURL
		}
	}
	return r, nil
}

// WatchURL returns the canonical source page URL for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Identity is the set of request identity parameters used for one upstream attempt.
type Identity struct {
	UserAgent     string
	PlayerClients []string
	// SkipProtocols narrows the delivery mechanisms upstream may offer (e.g. dash, hls).
	SkipProtocols []string
}
