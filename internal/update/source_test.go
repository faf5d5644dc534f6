package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewSource(t *testing.T) {
	s := NewSource("https://example.com/latest")
	if s.url != "https://example.com/latest" {
		t.Errorf("url = %q", s.url)
	}
	if s.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
	if s.assetPattern != "*.zip" {
		t.Errorf("assetPattern = %q, want *.zip", s.assetPattern)
	}
}

func TestNewSourceWithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 10 * time.Second}
	s := NewSource("u", WithHTTPClient(customClient), WithToken("  abc "), WithAssetPattern("app-*.zip"))

	if s.httpClient != customClient {
		t.Error("custom HTTP client not applied")
	}
	if s.token != "abc" {
		t.Errorf("token = %q, want trimmed abc", s.token)
	}
	if s.assetPattern != "app-*.zip" {
		t.Errorf("assetPattern = %q", s.assetPattern)
	}
}

func TestFetchLatest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token s3cret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tag_name": "v2.0.0",
			"body": "notes",
			"zipball_url": "https://example.com/zipball",
			"assets": [
				{"name": "checksums.txt", "browser_download_url": "https://example.com/sums"},
				{"name": "App-Win.ZIP", "browser_download_url": "https://example.com/app.zip"}
			]
		}`))
	}))
	defer server.Close()

	s := NewSource(server.URL, WithToken("s3cret"))
	info, err := s.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if info == nil {
		t.Fatal("FetchLatest() returned nil release")
	}
	if info.Version != "v2.0.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.ArchiveURL != "https://example.com/app.zip" {
		t.Errorf("ArchiveURL = %q, want matching asset", info.ArchiveURL)
	}
	if info.Notes != "notes" {
		t.Errorf("Notes = %q", info.Notes)
	}
}

func TestFetchLatest_NoTokenNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization should be absent, got %q", got)
		}
		_, _ = w.Write([]byte(`{"tag_name": "1.0", "zipball_url": "https://example.com/zipball"}`))
	}))
	defer server.Close()

	info, err := NewSource(server.URL).FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if info.ArchiveURL != "https://example.com/zipball" {
		t.Errorf("ArchiveURL = %q, want zipball fallback", info.ArchiveURL)
	}
}

func TestFetchLatest_ThrottledSetsRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reset := now.Add(5000 * time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "API rate limit exceeded"}`))
	}))
	defer server.Close()

	s := NewSource(server.URL, WithClock(func() time.Time { return now }))
	info, err := s.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if info != nil {
		t.Fatalf("throttled response should yield no release, got %+v", info)
	}
	if got := s.RateLimitRemaining(); got != 5000*time.Second {
		t.Errorf("RateLimitRemaining() = %v, want 5000s", got)
	}
}

func TestFetchLatest_ShortCircuitsWhileThrottled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("x-ratelimit-reset", strconv.FormatInt(now.Add(time.Hour).Unix(), 10))
		_, _ = w.Write([]byte(`{"message": "API rate limit exceeded"}`))
	}))
	defer server.Close()

	s := NewSource(server.URL, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		info, err := s.FetchLatest(ctx)
		if err != nil || info != nil {
			t.Fatalf("call %d: got (%v, %v), want (nil, nil)", i, info, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
}

func TestFetchLatest_ResumesAfterReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("x-ratelimit-reset", strconv.FormatInt(now.Add(time.Minute).Unix(), 10))
			_, _ = w.Write([]byte(`{"message": "API rate limit exceeded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"tag_name": "v3", "zipball_url": "https://example.com/z"}`))
	}))
	defer server.Close()

	s := NewSource(server.URL, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	if info, _ := s.FetchLatest(ctx); info != nil {
		t.Fatal("first call should be throttled")
	}

	now = now.Add(2 * time.Minute)
	if got := s.RateLimitRemaining(); got != 0 {
		t.Fatalf("RateLimitRemaining() after reset = %v, want 0", got)
	}
	info, err := s.FetchLatest(ctx)
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if info == nil || info.Version != "v3" {
		t.Fatalf("expected v3 after reset, got %+v", info)
	}
}

func TestFetchLatest_ThrottledWithoutHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	s := NewSource(server.URL)
	info, err := s.FetchLatest(context.Background())
	if err != nil || info != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", info, err)
	}
	if s.RateLimitRemaining() != 0 {
		t.Error("no header should leave rate limit unset")
	}
}

func TestFetchLatest_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	_, err := NewSource(server.URL).FetchLatest(context.Background())
	if !errors.Is(err, ErrMalformedRelease) {
		t.Fatalf("expected ErrMalformedRelease, got %v", err)
	}
}

func TestFetchLatest_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewSource(url).FetchLatest(context.Background())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestFetchLatest_TagWithoutArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v1", "assets": [{"name": "notes.txt", "browser_download_url": "x"}]}`))
	}))
	defer server.Close()

	_, err := NewSource(server.URL).FetchLatest(context.Background())
	if !errors.Is(err, ErrMalformedRelease) {
		t.Fatalf("expected ErrMalformedRelease, got %v", err)
	}
}

func TestFetchLatest_PublicAPIURL(t *testing.T) {
	var gotPath, gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"tag_name":"3.1.0","zipball_url":"https://api.github.com/repos/acme/app/zipball/3.1.0"}`))
	}))
	defer server.Close()

	client := &http.Client{
		Transport: &rewriteTransport{
			base:      http.DefaultTransport,
			targetURL: server.URL,
		},
	}
	s := NewSource("https://api.github.com/repos/acme/app/releases/latest", WithHTTPClient(client))

	info, err := s.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if info.Version != "3.1.0" {
		t.Errorf("Version = %q, want 3.1.0", info.Version)
	}
	if gotPath != "/repos/acme/app/releases/latest" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUA != "patchwatch" || gotAccept != "application/vnd.github+json" {
		t.Errorf("headers = %q / %q", gotUA, gotAccept)
	}
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	base      http.RoundTripper
	targetURL string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.targetURL[len("http://"):]
	return t.base.RoundTrip(req)
}
