package update

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned while reading the installed version.
var (
	ErrInstallDirMissing = fmt.Errorf("install directory not found")
	ErrManifestInvalid   = fmt.Errorf("manifest is invalid")
)

// Manifest reads the installed version from a JSON file inside the
// install directory.
type Manifest struct {
	installDir string
	relPath    string
}

// DefaultManifestPath is used when no relative path is configured.
const DefaultManifestPath = "resources/app/package.json"

// NewManifest returns a reader for relPath (slash separated) under installDir.
func NewManifest(installDir, relPath string) *Manifest {
	if strings.TrimSpace(relPath) == "" {
		relPath = DefaultManifestPath
	}
	return &Manifest{installDir: installDir, relPath: relPath}
}

// Path returns the resolved manifest location.
func (m *Manifest) Path() string {
	return filepath.Join(m.installDir, filepath.FromSlash(m.relPath))
}

// InstalledVersion reads the manifest. found is false when the manifest
// does not exist; that is not an error.
func (m *Manifest) InstalledVersion() (version string, found bool, err error) {
	info, err := os.Stat(m.installDir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("%w: %s", ErrInstallDirMissing, m.installDir)
	}
	if err != nil {
		return "", false, fmt.Errorf("stat install dir: %w", err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("%w: %s is not a directory", ErrInstallDirMissing, m.installDir)
	}

	//nolint:gosec // G304: manifest path comes from configuration
	data, err := os.ReadFile(m.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read manifest: %w", err)
	}

	var doc struct {
		Version *string `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if doc.Version == nil || strings.TrimSpace(*doc.Version) == "" {
		return "", false, fmt.Errorf("%w: no version field in %s", ErrManifestInvalid, m.Path())
	}
	return strings.TrimSpace(*doc.Version), true, nil
}
