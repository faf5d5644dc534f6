package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"patchwatch/internal/debug"
	"patchwatch/internal/lock"
	"patchwatch/internal/update"
)

func (a *app) applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Run a single update cycle in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			l, err := lock.TryAcquire(a.settings.Paths.LockFile)
			if err != nil {
				return err
			}
			debug.Logf("holding instance lock %s", l.Path())
			defer func() {
				if err := l.Release(); err != nil {
					debug.Errorf("release lock: %v", err)
				}
			}()

			store := a.openHistory()
			if store != nil {
				defer func() { _ = store.Close() }()
			}
			cycle, err := a.buildCycle(a.newSource(), a.newNotifier(a.settings), store)
			if err != nil {
				return err
			}

			res := cycle.RunOnce(cmd.Context())
			printResult(a.stdout, res)
			switch res.Outcome {
			case update.Failed, update.ConfigMissing, update.RemoteUnavailable:
				return res.Err
			}
			return nil
		},
	}
}

func printResult(w io.Writer, res update.Result) {
	p := newPalette(w)
	var status string
	switch res.Outcome {
	case update.UpdateApplied:
		status = p.ok.Render("updated")
	case update.NoUpdateNeeded:
		status = p.ok.Render("up to date")
	case update.UpdateSkippedBusy:
		status = p.warn.Render("waiting for the application to close")
	default:
		status = p.bad.Render(res.Outcome.String())
	}

	fmt.Fprintf(w, "%s %s\n", p.label.Render("Result:   "), status)
	if res.Installed != "" {
		fmt.Fprintf(w, "%s %s\n", p.label.Render("Installed:"), p.value.Render(res.Installed))
	}
	if res.Latest != "" {
		fmt.Fprintf(w, "%s %s\n", p.label.Render("Latest:   "), p.value.Render(res.Latest))
	}
}
