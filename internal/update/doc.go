// Package update checks a release endpoint for a newer build of the
// monitored application and installs it when the application is closed.
//
// The pieces, leaves first:
//   - Source queries the release API and remembers rate-limit resets
//   - Manifest reads the installed version from the install directory
//   - Guard reports whether the application is running
//   - Installer downloads a release archive and unpacks it
//   - Cycle ties them together in RunOnce
//   - Scheduler repeats the cycle, waiting longer while rate limited
//
// Example usage:
//
//	src := update.NewSource(apiURL, update.WithToken(token))
//	cycle, err := update.NewCycle(update.CycleConfig{
//	    InstallDir:  dir,
//	    ProcessName: "App.exe",
//	}, update.CycleDeps{
//	    Source:    src,
//	    Local:     update.NewManifest(dir, ""),
//	    Guard:     update.NewGuard(),
//	    Installer: update.NewInstaller(),
//	})
//	if err != nil {
//	    // handle error
//	}
//	update.NewScheduler(cycle, src, 30*time.Minute).Run(ctx)
package update
