package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single release query.
const DefaultTimeout = 30 * time.Second

// Error variables for specific error conditions.
var (
	ErrNetworkFailure   = fmt.Errorf("network request failed")
	ErrMalformedRelease = fmt.Errorf("malformed release response")
)

// ReleaseInfo describes the latest published release.
// Version is compared only for equality.
type ReleaseInfo struct {
	Version    string
	ArchiveURL string
	Notes      string
}

// releaseAsset is a downloadable file attached to a release.
type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// releasePayload covers both the success and the throttled response shapes.
type releasePayload struct {
	TagName    string         `json:"tag_name"`
	Body       string         `json:"body"`
	ZipballURL string         `json:"zipball_url"`
	Assets     []releaseAsset `json:"assets"`
	Message    string         `json:"message"`
}

// Source queries the release API and tracks rate-limit state.
type Source struct {
	url          string
	token        string
	assetPattern string
	httpClient   *http.Client
	now          func() time.Time

	mu      sync.Mutex
	resetAt time.Time
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHTTPClient sets a custom HTTP client for the source.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *Source) {
		s.httpClient = client
	}
}

// WithToken sends "Authorization: token <value>" on every query.
func WithToken(token string) SourceOption {
	return func(s *Source) {
		s.token = strings.TrimSpace(token)
	}
}

// WithAssetPattern selects the release asset whose name matches pattern
// (path.Match syntax).
func WithAssetPattern(pattern string) SourceOption {
	return func(s *Source) {
		s.assetPattern = pattern
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.now = now
	}
}

// NewSource creates a release source for the given API URL.
func NewSource(url string, opts ...SourceOption) *Source {
	s := &Source{
		url:          url,
		assetPattern: "*.zip",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchLatest returns the latest release, or nil without error when no
// release is available right now: either the API throttled the request or
// a previous throttle has not reset yet, in which case no request is sent.
func (s *Source) FetchLatest(ctx context.Context) (*ReleaseInfo, error) {
	if s.RateLimitRemaining() > 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "patchwatch")
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetworkFailure, err)
	}

	var payload releasePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRelease, err)
	}

	if payload.TagName == "" {
		if payload.Message == "" {
			return nil, fmt.Errorf("%w: status %d without tag or message", ErrMalformedRelease, resp.StatusCode)
		}
		s.noteThrottle(resp.Header.Get("x-ratelimit-reset"))
		return nil, nil
	}

	archive := s.pickArchive(payload)
	if archive == "" {
		return nil, fmt.Errorf("%w: release %s has no archive", ErrMalformedRelease, payload.TagName)
	}

	return &ReleaseInfo{
		Version:    payload.TagName,
		ArchiveURL: archive,
		Notes:      payload.Body,
	}, nil
}

// RateLimitRemaining reports how long until the last reported reset time.
// Zero means no throttle is in effect.
func (s *Source) RateLimitRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetAt.IsZero() {
		return 0
	}
	remaining := s.resetAt.Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// noteThrottle records the reset header (Unix seconds). An absent or
// unparseable header leaves the previous state in place.
func (s *Source) noteThrottle(header string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return
	}
	seconds, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.resetAt = time.UnixMilli(seconds * 1000)
	s.mu.Unlock()
}

func (s *Source) pickArchive(p releasePayload) string {
	for _, asset := range p.Assets {
		if asset.BrowserDownloadURL == "" {
			continue
		}
		if ok, _ := path.Match(strings.ToLower(s.assetPattern), strings.ToLower(asset.Name)); ok {
			return asset.BrowserDownloadURL
		}
	}
	return p.ZipballURL
}
