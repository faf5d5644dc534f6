package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "patchwatch/internal/errors"
	"patchwatch/internal/update"
)

const notesWidth = 80

func (a *app) checkCmd() *cobra.Command {
	var showNotes bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the installed version with the latest release",
		Long:  "check queries the release endpoint once and reports whether an update is available. It never downloads or changes anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			p := newPalette(a.stdout)

			installed, found, err := a.newManifest().InstalledVersion()
			if errors.Is(err, update.ErrInstallDirMissing) {
				return apperrors.New(apperrors.CodeConfigMissing, "install directory missing", err)
			}
			if err != nil {
				return apperrors.New(apperrors.CodeManifestInvalid, "read installed version", err)
			}
			if !found {
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Installed:"), p.warn.Render("unknown (no manifest)"))
			} else {
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Installed:"), p.value.Render(installed))
			}

			src := a.newSource()
			info, err := src.FetchLatest(cmd.Context())
			if err != nil {
				return apperrors.New(apperrors.CodeRemoteUnavailable, "fetch latest release", err)
			}
			if info == nil {
				msg := "release information unavailable"
				if wait := src.RateLimitRemaining(); wait > 0 {
					msg = fmt.Sprintf("rate limited, retry in %s", wait.Round(time.Second))
				}
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Latest:   "), p.warn.Render(msg))
				return nil
			}

			fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Latest:   "), p.value.Render(info.Version))
			switch {
			case !found:
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Status:   "), p.warn.Render("cannot compare"))
			case info.Version == installed:
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Status:   "), p.ok.Render("up to date"))
			default:
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Status:   "), p.warn.Render("update available"))
				fmt.Fprintf(a.stdout, "%s %s\n", p.label.Render("Archive:  "), p.dim.Render(info.ArchiveURL))
			}

			if showNotes {
				if notes := renderNotes(info.Notes, notesWidth); notes != "" {
					fmt.Fprintln(a.stdout)
					fmt.Fprintln(a.stdout, p.title.Render("Release notes"))
					fmt.Fprintln(a.stdout, notes)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showNotes, "notes", true, "Render the release notes")
	return cmd
}
