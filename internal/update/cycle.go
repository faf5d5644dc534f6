package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/mod/semver"

	"patchwatch/internal/debug"
	apperrors "patchwatch/internal/errors"
	"patchwatch/internal/notify"
)

// Notification texts. Failure notices stay generic; detail goes to the log.
const (
	noticeTitle = "patchwatch"

	msgNoLocalVersion = "Cannot find the local version of the application; skipping update check."
	msgNoInstallDir   = "The application install directory was not found; check the configuration."
	msgCloseApp       = "Version %s is available. Please close the application so it can be updated."
	msgUpdating       = "Updating to version %s..."
	msgUpdated        = "Updated to version %s."
	msgFailed         = "The update failed. See the log for details."
)

// ReleaseFetcher returns the latest release, or nil when none is available.
type ReleaseFetcher interface {
	FetchLatest(ctx context.Context) (*ReleaseInfo, error)
}

// VersionReader returns the installed version.
type VersionReader interface {
	InstalledVersion() (version string, found bool, err error)
}

// ProcessChecker reports whether a process is running.
type ProcessChecker interface {
	IsRunning(ctx context.Context, imageName string) (bool, error)
}

// ArchiveInstaller stages and unpacks release archives.
type ArchiveInstaller interface {
	Download(ctx context.Context, url string) (string, error)
	Extract(archivePath, destDir string) error
}

// Recorder persists applied updates.
type Recorder interface {
	RecordApplied(ctx context.Context, from, to, archiveURL string) error
}

// CycleConfig is the runtime config the cycle needs.
type CycleConfig struct {
	InstallDir  string
	ProcessName string
}

// CycleDeps are the collaborators of a Cycle. Recorder is optional.
type CycleDeps struct {
	Source    ReleaseFetcher
	Local     VersionReader
	Guard     ProcessChecker
	Installer ArchiveInstaller
	Notifier  notify.Notifier
	Recorder  Recorder
}

// Cycle runs one check-and-apply pass at a time.
type Cycle struct {
	cfg  CycleConfig
	deps CycleDeps

	// busyNotified is the remote version already announced as waiting
	// for the application to close. Only a cycle that sees the busy state
	// end (versions equal or the application closed) clears it.
	busyNotified string
}

// NewCycle validates its inputs and returns a Cycle.
func NewCycle(cfg CycleConfig, deps CycleDeps) (*Cycle, error) {
	if strings.TrimSpace(cfg.InstallDir) == "" {
		return nil, errors.New("update: install dir required")
	}
	if strings.TrimSpace(cfg.ProcessName) == "" {
		return nil, errors.New("update: process name required")
	}
	if deps.Source == nil || deps.Local == nil || deps.Guard == nil || deps.Installer == nil {
		return nil, errors.New("update: source, local, guard and installer are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Cycle{cfg: cfg, deps: deps}, nil
}

// RunOnce performs exactly one cycle. Errors never escape: they are
// logged, announced generically, and reported in the Result.
func (c *Cycle) RunOnce(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = c.fail(res, apperrors.New(apperrors.CodeUnknown, "cycle panicked", fmt.Errorf("%v", r)))
		}
		debug.Logf("cycle finished: outcome=%s installed=%q latest=%q", res.Outcome, res.Installed, res.Latest)
	}()

	installed, found, err := c.deps.Local.InstalledVersion()
	switch {
	case errors.Is(err, ErrInstallDirMissing):
		debug.Errorf("read installed version: %v", err)
		c.notify(msgNoInstallDir)
		res.Outcome = ConfigMissing
		res.Err = apperrors.New(apperrors.CodeConfigMissing, "install directory missing", err)
		return res
	case errors.Is(err, ErrManifestInvalid):
		return c.fail(res, apperrors.New(apperrors.CodeManifestInvalid, "read installed version", err))
	case err != nil:
		return c.fail(res, apperrors.New(apperrors.CodeConfigMissing, "read installed version", err))
	case !found:
		debug.Logf("no local version manifest; skipping cycle")
		c.notify(msgNoLocalVersion)
		res.Outcome = NoUpdateNeeded
		return res
	}
	res.Installed = installed

	latest, err := c.deps.Source.FetchLatest(ctx)
	if err != nil {
		debug.Errorf("fetch latest release: %v", err)
		res.Outcome = RemoteUnavailable
		res.Err = apperrors.New(apperrors.CodeRemoteUnavailable, "fetch latest release", err)
		return res
	}
	if latest == nil {
		debug.Debugf("no release available this cycle")
		res.Outcome = NoUpdateNeeded
		return res
	}
	res.Latest = latest.Version

	if latest.Version == installed {
		c.busyNotified = ""
		res.Outcome = NoUpdateNeeded
		return res
	}
	if isRollback(installed, latest.Version) {
		debug.Logf("remote %s is older than installed %s; applying as a rollback", latest.Version, installed)
	}

	running, err := c.deps.Guard.IsRunning(ctx, c.cfg.ProcessName)
	if err != nil {
		return c.fail(res, apperrors.New(apperrors.CodeProcessCheckFailed, "check running process", err))
	}
	if running {
		debug.Logf("update %s available but %s is running", latest.Version, c.cfg.ProcessName)
		if c.busyNotified != latest.Version {
			c.notify(fmt.Sprintf(msgCloseApp, latest.Version))
			c.busyNotified = latest.Version
		}
		res.Outcome = UpdateSkippedBusy
		return res
	}
	c.busyNotified = ""

	c.notify(fmt.Sprintf(msgUpdating, latest.Version))
	if err := c.apply(ctx, installed, latest); err != nil {
		return c.fail(res, err)
	}
	c.notify(fmt.Sprintf(msgUpdated, latest.Version))
	res.Outcome = UpdateApplied
	return res
}

// apply downloads, unpacks and removes the archive. On extraction
// failure the archive is kept for inspection.
func (c *Cycle) apply(ctx context.Context, installed string, latest *ReleaseInfo) error {
	debug.Logf("downloading %s from %s", latest.Version, latest.ArchiveURL)
	archivePath, err := c.deps.Installer.Download(ctx, latest.ArchiveURL)
	if err != nil {
		return apperrors.New(apperrors.CodeDownloadFailed, "download archive", err)
	}

	debug.Logf("extracting %s into %s", archivePath, c.cfg.InstallDir)
	if err := c.deps.Installer.Extract(archivePath, c.cfg.InstallDir); err != nil {
		debug.Errorf("archive left at %s for inspection", archivePath)
		return apperrors.New(apperrors.CodeExtractFailed, "extract archive", err)
	}

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		debug.Errorf("remove archive %s: %v", archivePath, err)
	}

	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.RecordApplied(ctx, installed, latest.Version, latest.ArchiveURL); err != nil {
			debug.Errorf("record update history: %v", err)
		}
	}
	debug.Logf("updated %s -> %s", installed, latest.Version)
	return nil
}

func (c *Cycle) fail(res Result, err error) Result {
	debug.Errorf("cycle failed [%s]: %v", apperrors.CodeOf(err), err)
	c.notify(msgFailed)
	res.Outcome = Failed
	res.Err = err
	return res
}

func (c *Cycle) notify(message string) {
	if err := c.deps.Notifier.Send(notify.Notification{Title: noticeTitle, Message: message}); err != nil {
		debug.Errorf("send notification via %s: %v", c.deps.Notifier.Name(), err)
	}
}

// isRollback reports whether both tags are semver and latest sorts below
// installed. It only annotates the log; any difference is still applied.
func isRollback(installed, latest string) bool {
	a, b := canonicalTag(installed), canonicalTag(latest)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return false
	}
	return semver.Compare(b, a) < 0
}

func canonicalTag(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
