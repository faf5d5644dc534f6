package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyReleaseAPIURL       = "release.api-url"
	KeyReleaseToken        = "release.token"
	KeyReleaseAssetPattern = "release.asset-pattern"
	KeyKeyringService      = "release.keyring-service"
	KeyKeyringUser         = "release.keyring-user"

	KeyInstallDir     = "install.dir"
	KeyManifestPath   = "install.manifest"
	KeyProcessName    = "install.process-name"
	KeyCheckInterval  = "check.interval-ms"
	KeyTempDir        = "paths.temp-dir"
	KeyLogFile        = "paths.log-file"
	KeyLockFile       = "paths.lock-file"
	KeyHistoryDB      = "paths.history-db"
	KeyNotifyEnabled  = "notify.enabled"
	KeyNotifyDedupe   = "notify.dedupe-window"
	KeyDebug          = "debug"
)

const (
	// DefaultCheckIntervalMs is the poll interval used when none is configured.
	DefaultCheckIntervalMs = 1_800_000
	// DefaultManifestPath is the manifest location relative to the install dir.
	DefaultManifestPath = "resources/app/package.json"
	// DefaultAssetPattern selects the release asset to download.
	DefaultAssetPattern = "*.zip"
	// DefaultKeyringService is the keyring service holding the API token.
	DefaultKeyringService = "patchwatch"
	// DefaultDedupeWindow suppresses identical consecutive notifications.
	DefaultDedupeWindow = 10 * time.Second

	configDirName = ".patchwatch"
	envPrefix     = "PW"
)

type initSettings struct {
	configFile     string
	userConfigPath string
	homeDir        string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithConfigFile merges an explicit config file on top of the user config.
func WithConfigFile(path string) Option {
	return func(cfg *initSettings) {
		cfg.configFile = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

// WithHomeDir overrides the directory used to derive default paths.
func WithHomeDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.homeDir = dir
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < explicit config file < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

func configure(settings *initSettings) error {
	home := strings.TrimSpace(settings.homeDir)
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determine user home: %w", err)
		}
		home = h
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		userConfigPath = filepath.Join(home, configDirName, "config.yaml")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, home)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath, false); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, settings.configFile, true); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

// mergeConfigFile merges path into v. A missing file is skipped unless
// required is set, which is the case for a file named on the command line.
func mergeConfigFile(v *viper.Viper, path string, required bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if required {
			return fmt.Errorf("config file %s not found", path)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, home string) {
	base := filepath.Join(home, configDirName)

	v.SetDefault(KeyReleaseAPIURL, "")
	v.SetDefault(KeyReleaseToken, "")
	v.SetDefault(KeyReleaseAssetPattern, DefaultAssetPattern)
	v.SetDefault(KeyKeyringService, DefaultKeyringService)
	v.SetDefault(KeyKeyringUser, "")
	v.SetDefault(KeyInstallDir, "")
	v.SetDefault(KeyManifestPath, DefaultManifestPath)
	v.SetDefault(KeyProcessName, "")
	v.SetDefault(KeyCheckInterval, DefaultCheckIntervalMs)
	v.SetDefault(KeyTempDir, "")
	v.SetDefault(KeyLogFile, filepath.Join(base, "patchwatch.log"))
	v.SetDefault(KeyLockFile, filepath.Join(base, "patchwatch.lock"))
	v.SetDefault(KeyHistoryDB, filepath.Join(base, "history.db"))
	v.SetDefault(KeyNotifyEnabled, true)
	v.SetDefault(KeyNotifyDedupe, DefaultDedupeWindow)
	v.SetDefault(KeyDebug, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
//
//nolint:unused // Used in config_test.go
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages and
// initializes against an empty home directory.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithHomeDir(tmp), WithUserConfig(filepath.Join(tmp, "none.yaml")))
	return reset
}
