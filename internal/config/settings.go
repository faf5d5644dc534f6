package config

import (
	"fmt"
	"strings"
	"time"

	apperrors "patchwatch/internal/errors"
)

// Settings is the typed view of the configuration consumed by cmd.
type Settings struct {
	Release ReleaseSettings `yaml:"release"`
	Install InstallSettings `yaml:"install"`
	Check   CheckSettings   `yaml:"check"`
	Paths   PathSettings    `yaml:"paths"`
	Notify  NotifySettings  `yaml:"notify"`
	Debug   bool            `yaml:"debug"`
}

// ReleaseSettings describes the remote release endpoint.
type ReleaseSettings struct {
	APIURL         string `yaml:"api-url"`
	Token          string `yaml:"token,omitempty"`
	AssetPattern   string `yaml:"asset-pattern"`
	KeyringService string `yaml:"keyring-service"`
	KeyringUser    string `yaml:"keyring-user,omitempty"`
}

// InstallSettings describes the monitored installation.
type InstallSettings struct {
	Dir         string `yaml:"dir"`
	Manifest    string `yaml:"manifest"`
	ProcessName string `yaml:"process-name"`
}

// CheckSettings controls the poll loop.
type CheckSettings struct {
	IntervalMs int `yaml:"interval-ms"`
}

// Interval returns the configured poll interval.
func (c CheckSettings) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// PathSettings locates files owned by patchwatch itself.
type PathSettings struct {
	TempDir   string `yaml:"temp-dir,omitempty"`
	LogFile   string `yaml:"log-file"`
	LockFile  string `yaml:"lock-file"`
	HistoryDB string `yaml:"history-db"`
}

// NotifySettings controls desktop notifications.
type NotifySettings struct {
	Enabled      bool          `yaml:"enabled"`
	DedupeWindow time.Duration `yaml:"dedupe-window"`
}

// Load returns the current settings, initializing on demand.
func Load() (Settings, error) {
	v, err := getViper()
	if err != nil {
		return Settings{}, err
	}
	configMu.RLock()
	defer configMu.RUnlock()

	return Settings{
		Release: ReleaseSettings{
			APIURL:         strings.TrimSpace(v.GetString(KeyReleaseAPIURL)),
			Token:          strings.TrimSpace(v.GetString(KeyReleaseToken)),
			AssetPattern:   strings.TrimSpace(v.GetString(KeyReleaseAssetPattern)),
			KeyringService: strings.TrimSpace(v.GetString(KeyKeyringService)),
			KeyringUser:    strings.TrimSpace(v.GetString(KeyKeyringUser)),
		},
		Install: InstallSettings{
			Dir:         strings.TrimSpace(v.GetString(KeyInstallDir)),
			Manifest:    strings.TrimSpace(v.GetString(KeyManifestPath)),
			ProcessName: strings.TrimSpace(v.GetString(KeyProcessName)),
		},
		Check: CheckSettings{
			IntervalMs: v.GetInt(KeyCheckInterval),
		},
		Paths: PathSettings{
			TempDir:   strings.TrimSpace(v.GetString(KeyTempDir)),
			LogFile:   strings.TrimSpace(v.GetString(KeyLogFile)),
			LockFile:  strings.TrimSpace(v.GetString(KeyLockFile)),
			HistoryDB: strings.TrimSpace(v.GetString(KeyHistoryDB)),
		},
		Notify: NotifySettings{
			Enabled:      v.GetBool(KeyNotifyEnabled),
			DedupeWindow: v.GetDuration(KeyNotifyDedupe),
		},
		Debug: v.GetBool(KeyDebug),
	}, nil
}

// Validate reports the first setting that prevents the updater from running.
func (s Settings) Validate() error {
	var problems []string
	if s.Release.APIURL == "" {
		problems = append(problems, KeyReleaseAPIURL+" is required")
	}
	if s.Install.Dir == "" {
		problems = append(problems, KeyInstallDir+" is required")
	}
	if s.Install.Manifest == "" {
		problems = append(problems, KeyManifestPath+" must not be empty")
	}
	if s.Install.ProcessName == "" {
		problems = append(problems, KeyProcessName+" is required")
	}
	if s.Check.IntervalMs <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be > 0 (got %d)", KeyCheckInterval, s.Check.IntervalMs))
	}
	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.CodeConfigurationError, "invalid configuration", fmt.Errorf("%s", strings.Join(problems, "; ")))
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	if s.Release.Token != "" {
		s.Release.Token = "********"
	}
	return s
}
