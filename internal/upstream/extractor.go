package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

// ExtractorConfig holds configuration for the extractor subprocess resolver.
type ExtractorConfig struct {
	// Path is the path to the extractor binary.
	// If empty, "yt-dlp" will be used (assumes it's in PATH).
	Path string

	// Format is the format selector passed to the extractor, so the top-level
	// URL in its output is upstream's own best pick.
	// Default: bestaudio/best
	Format string

	// ExtractorKey scopes the client hints (--extractor-args <key>:...).
	// Default: youtube
	ExtractorKey string

	// SocketTimeout is the per-socket timeout in seconds handed to the extractor.
	// Default: 15
	SocketTimeout int
}

// DefaultExtractorConfig returns an ExtractorConfig with production-ready defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Path:          "yt-dlp",
		Format:        "bestaudio/best",
		ExtractorKey:  "youtube",
		SocketTimeout: 15,
	}
}

// commandRunner executes a command and returns its captured output.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Extractor implements Resolver by running the extractor CLI.
type Extractor struct {
	config ExtractorConfig
	run    commandRunner
}

// Compile-time verification that Extractor implements Resolver.
var _ Resolver = (*Extractor)(nil)

// NewExtractor creates a new extractor-backed resolver.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.ExtractorKey == "" {
		cfg.ExtractorKey = "youtube"
	}
	return &Extractor{
		config: cfg,
		run:    execRunner,
	}
}

// unavailableMarkers are stderr fragments meaning upstream cleanly has no such item.
var unavailableMarkers = []string{
	"video unavailable",
	"private video",
	"this video is not available",
	"this video has been removed",
	"does not exist",
	"incomplete youtube id",
}

// Resolve runs the extractor once for req and decodes its JSON output.
func (e *Extractor) Resolve(ctx context.Context, req Request) (*model.RawResponse, error) {
	args := e.buildArgs(req)

	stdout, stderr, err := e.run(ctx, e.config.Path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("extraction cancelled: %w", ctx.Err())
		}
		if isUnavailable(stderr) {
			return nil, nil
		}
		return nil, fmt.Errorf("extractor execution failed: %w: %s", err, lastLine(stderr))
	}

	raw, err := decodeExtractorJSON(stdout)
	if err != nil {
		return nil, &MalformedPayloadError{Source: "extractor", Payload: stdout, Err: err}
	}

	return usable(raw), nil
}

// buildArgs constructs the extractor command arguments.
func (e *Extractor) buildArgs(req Request) []string {
	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
	}
	if e.config.Format != "" {
		args = append(args, "-f", e.config.Format)
	}
	if e.config.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", fmt.Sprintf("%d", e.config.SocketTimeout))
	}
	if req.Identity.UserAgent != "" {
		args = append(args, "--user-agent", req.Identity.UserAgent)
	}
	if hints := e.extractorArgs(req.Identity); hints != "" {
		args = append(args, "--extractor-args", hints)
	}
	return append(args, req.URL)
}

// extractorArgs renders client hints, e.g. "youtube:player_client=android;skip=dash,hls".
func (e *Extractor) extractorArgs(id model.Identity) string {
	var parts []string
	if len(id.PlayerClients) > 0 {
		parts = append(parts, "player_client="+strings.Join(id.PlayerClients, ","))
	}
	if len(id.SkipProtocols) > 0 {
		parts = append(parts, "skip="+strings.Join(id.SkipProtocols, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return e.config.ExtractorKey + ":" + strings.Join(parts, ";")
}

type extractorFormat struct {
	URL            string   `json:"url"`
	ACodec         string   `json:"acodec"`
	VCodec         string   `json:"vcodec"`
	ABR            *float64 `json:"abr"`
	TBR            *float64 `json:"tbr"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
	FormatID       string   `json:"format_id"`
}

type extractorInfo struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Uploader   string            `json:"uploader"`
	Channel    string            `json:"channel"`
	Duration   float64           `json:"duration"`
	URL        string            `json:"url"`
	Thumbnail  string            `json:"thumbnail"`
	WebpageURL string            `json:"webpage_url"`
	Formats    []extractorFormat `json:"formats"`
}

func decodeExtractorJSON(data []byte) (*model.RawResponse, error) {
	var info extractorInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}

	raw := &model.RawResponse{
		ID:         info.ID,
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   info.Duration,
		URL:        info.URL,
		Thumbnail:  info.Thumbnail,
		WebpageURL: info.WebpageURL,
	}
	if raw.Uploader == "" {
		raw.Uploader = info.Channel
	}

	for _, f := range info.Formats {
		asset := model.CandidateAsset{
			URL:        f.URL,
			AudioCodec: f.ACodec,
			VideoCodec: f.VCodec,
			Quality:    f.FormatNote,
		}
		switch {
		case f.ABR != nil:
			asset.Bitrate = *f.ABR
		case f.TBR != nil:
			asset.Bitrate = *f.TBR
		}
		switch {
		case f.Filesize != nil:
			asset.Size = *f.Filesize
		case f.FilesizeApprox != nil:
			asset.Size = *f.FilesizeApprox
		}
		if asset.Quality == "" {
			asset.Quality = f.FormatID
		}
		raw.Formats = append(raw.Formats, asset)
	}

	return raw, nil
}

func isUnavailable(stderr []byte) bool {
	msg := strings.ToLower(string(stderr))
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// lastLine returns the last non-empty stderr line, which carries the extractor's error.
func lastLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
