package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"patchwatch/internal/debug"
	"patchwatch/internal/lock"
	"patchwatch/internal/update"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch for updates until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

// runDaemon holds the instance lock and drives the scheduler until a
// signal cancels the context.
func (a *app) runDaemon(ctx context.Context) error {
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

	notifier := a.newNotifier(a.settings)
	store := a.openHistory()
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	src := a.newSource()
	cycle, err := a.buildCycle(src, notifier, store)
	if err != nil {
		return err
	}

	ctx, stop := a.signals(ctx)
	defer stop()

	interval := a.settings.Check.Interval()
	fmt.Fprintf(a.stdout, "patchwatch watching %s every %s (log: %s)\n",
		a.settings.Install.Dir, interval, a.settings.Paths.LogFile)

	scheduler := update.NewScheduler(cycle, src, interval,
		update.WithSchedulerNotifier(notifier),
		update.WithObserver(func(res update.Result) {
			if res.Err != nil {
				debug.Errorf("cycle result %s: %v", res.Outcome, res.Err)
			}
		}),
	)
	scheduler.Run(ctx)

	fmt.Fprintln(a.stdout, "patchwatch stopped")
	return nil
}
