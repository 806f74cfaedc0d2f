package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

const (
	defaultFrontendTimeout = 20 * time.Second
	maxFrontendBody        = 8 << 20
)

// ErrBodyTooLarge is returned when a front-end response exceeds the read
// limit. It is a transport failure, not a malformed payload, and is retried.
var ErrBodyTooLarge = errors.New("frontend response body too large")

// FrontendClient implements Resolver against an alternative front-end's
// video API (Invidious-compatible: GET {base}/api/v1/videos/{id}).
type FrontendClient struct {
	httpClient *http.Client
}

// Compile-time verification that FrontendClient implements Resolver.
var _ Resolver = (*FrontendClient)(nil)

// NewFrontendClient creates a front-end API resolver. A nil client gets a default with a 20s timeout.
func NewFrontendClient(httpClient *http.Client) *FrontendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFrontendTimeout}
	}
	return &FrontendClient{httpClient: httpClient}
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Resolve fetches video details from the front-end at req.URL.
func (c *FrontendClient) Resolve(ctx context.Context, req Request) (*model.RawResponse, error) {
	endpoint := strings.TrimRight(req.URL, "/") + "/api/v1/videos/" + req.ID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Identity.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.Identity.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("frontend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFrontendBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxFrontendBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxFrontendBody)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	raw, err := decodeFrontendJSON(body)
	if err != nil {
		return nil, &MalformedPayloadError{Source: "frontend", Payload: body, Err: err}
	}

	return usable(raw), nil
}

// flexNumber accepts both JSON numbers and numeric strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", b, err)
	}
	*n = flexNumber(f)
	return nil
}

type frontendFormat struct {
	URL          string     `json:"url"`
	Type         string     `json:"type"`
	Bitrate      flexNumber `json:"bitrate"`
	ContentLen   flexNumber `json:"clen"`
	Encoding     string     `json:"encoding"`
	QualityLabel string     `json:"qualityLabel"`
	AudioQuality string     `json:"audioQuality"`
}

type frontendThumbnail struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

type frontendVideo struct {
	VideoID         string              `json:"videoId"`
	Title           string              `json:"title"`
	Author          string              `json:"author"`
	LengthSeconds   flexNumber          `json:"lengthSeconds"`
	Thumbnails      []frontendThumbnail `json:"videoThumbnails"`
	AdaptiveFormats []frontendFormat    `json:"adaptiveFormats"`
	FormatStreams   []frontendFormat    `json:"formatStreams"`
	Error           string              `json:"error"`
}

func decodeFrontendJSON(data []byte) (*model.RawResponse, error) {
	var v frontendVideo
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v.Error != "" {
		return nil, nil
	}

	raw := &model.RawResponse{
		ID:       v.VideoID,
		Title:    v.Title,
		Uploader: v.Author,
		Duration: float64(v.LengthSeconds),
	}
	if v.VideoID != "" {
		raw.WebpageURL = model.WatchURL(v.VideoID)
	}
	for _, t := range v.Thumbnails {
		if t.URL != "" {
			raw.Thumbnail = t.URL
			break
		}
	}

	for _, f := range v.AdaptiveFormats {
		raw.Formats = append(raw.Formats, adaptiveAsset(f))
	}
	for _, f := range v.FormatStreams {
		raw.Formats = append(raw.Formats, muxedAsset(f))
	}

	return raw, nil
}

// adaptiveAsset maps a single-track stream; its MIME major type says which track it carries.
func adaptiveAsset(f frontendFormat) model.CandidateAsset {
	asset := model.CandidateAsset{
		URL:     f.URL,
		Bitrate: float64(f.Bitrate) / 1000,
		Size:    int64(f.ContentLen),
		Quality: f.QualityLabel,
	}
	mediaType, codecs := parseMIME(f.Type)
	codec := codecs
	if codec == "" {
		codec = f.Encoding
	}
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		asset.AudioCodec = codec
		asset.Quality = f.AudioQuality
	case strings.HasPrefix(mediaType, "video/"):
		asset.VideoCodec = codec
	}
	return asset
}

// muxedAsset maps a combined audio+video stream.
func muxedAsset(f frontendFormat) model.CandidateAsset {
	_, codecs := parseMIME(f.Type)
	videoCodec, audioCodec := codecs, codecs
	if codecs == "" {
		videoCodec, audioCodec = "unknown", "unknown"
	}
	if parts := strings.Split(codecs, ","); len(parts) == 2 {
		videoCodec = strings.TrimSpace(parts[0])
		audioCodec = strings.TrimSpace(parts[1])
	}
	return model.CandidateAsset{
		URL:        f.URL,
		AudioCodec: audioCodec,
		VideoCodec: videoCodec,
		Bitrate:    float64(f.Bitrate) / 1000,
		Size:       int64(f.ContentLen),
		Quality:    f.QualityLabel,
	}
}

func parseMIME(t string) (string, string) {
	mediaType, params, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(t, ";", 2)[0]), ""
	}
	return mediaType, params["codecs"]
}
