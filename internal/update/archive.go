package update

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Error variables for installer failures.
var (
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrExtractionFailed = fmt.Errorf("extraction failed")
)

// Installer downloads release archives and unpacks them.
type Installer struct {
	tempDir    string
	httpClient *http.Client
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithInstallerHTTPClient sets a custom HTTP client for downloads.
func WithInstallerHTTPClient(client *http.Client) InstallerOption {
	return func(i *Installer) {
		i.httpClient = client
	}
}

// WithTempDir stages downloads in dir instead of the OS temp directory.
func WithTempDir(dir string) InstallerOption {
	return func(i *Installer) {
		i.tempDir = dir
	}
}

// NewInstaller creates an installer.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{
		httpClient: &http.Client{
			Timeout: 0, // No timeout for downloads
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Download fetches url into a fresh temporary file and returns its path.
// A failed transfer removes the partial file.
func (i *Installer) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "patchwatch")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	if i.tempDir != "" {
		//nolint:gosec // G301: staging directory needs standard permissions
		if err := os.MkdirAll(i.tempDir, 0755); err != nil {
			return "", fmt.Errorf("%w: create temp directory: %v", ErrDownloadFailed, err)
		}
	}
	out, err := os.CreateTemp(i.tempDir, "patchwatch-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrDownloadFailed, err)
	}
	archivePath := out.Name()

	//nolint:gosec // G110: archive size is bounded by the release
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return archivePath, nil
}

// Extract unpacks the zip archive at archivePath into destDir,
// overwriting existing files. Entries that would land outside destDir
// are rejected.
func (i *Installer) Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open archive: %v", ErrExtractionFailed, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrExtractionFailed, f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	rel := filepath.Clean(filepath.FromSlash(f.Name))
	if rel == "." {
		return nil
	}
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("entry escapes destination")
	}
	target := filepath.Join(destDir, rel)

	if f.FileInfo().IsDir() {
		//nolint:gosec // G301: installed application directories
		return os.MkdirAll(target, 0755)
	}

	//nolint:gosec // G301: installed application directories
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	//nolint:gosec // G304: target is confined to destDir above
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	//nolint:gosec // G110: decompression bomb unlikely for known release assets
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
