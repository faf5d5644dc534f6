package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"patchwatch/internal/config"
	"patchwatch/internal/credential"
	"patchwatch/internal/debug"
	"patchwatch/internal/history"
	"patchwatch/internal/notify"
	"patchwatch/internal/update"
)

const defaultKeyringUser = "api-token"

// app carries the state shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile  string
	debugFlag   bool
	installDir  string
	intervalMs  int
	noNotify    bool
	settings    config.Settings
	newNotifier func(config.Settings) notify.Notifier
	signals     func(context.Context) (context.Context, context.CancelFunc)
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		newNotifier: desktopNotifier,
		signals: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		},
	}
}

func (a *app) execute(args []string) error {
	if args == nil {
		args = []string{}
	}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	err := root.Execute()
	debug.Close()
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "patchwatch",
		Short:         "Keep a locally installed application up to date",
		Long:          "patchwatch polls a release endpoint and installs new builds of the monitored application while it is closed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadSettings(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDaemon(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a config file (YAML)")
	flags.BoolVar(&a.debugFlag, "debug", false, "Mirror the log to stderr")
	flags.StringVar(&a.installDir, "install-dir", "", "Override install.dir")
	flags.IntVar(&a.intervalMs, "interval-ms", 0, "Override check.interval-ms")
	flags.BoolVar(&a.noNotify, "no-notify", false, "Disable desktop notifications")

	root.AddCommand(
		a.runCmd(),
		a.checkCmd(),
		a.applyCmd(),
		a.historyCmd(),
		a.configCmd(),
		a.tokenCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) loadSettings(cmd *cobra.Command) error {
	var opts []config.Option
	if strings.TrimSpace(a.configFile) != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	if err := config.Initialize(opts...); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		overrides[config.KeyDebug] = a.debugFlag
	}
	if flags.Changed("install-dir") {
		overrides[config.KeyInstallDir] = a.installDir
	}
	if flags.Changed("interval-ms") {
		overrides[config.KeyCheckInterval] = a.intervalMs
	}
	if flags.Changed("no-notify") {
		overrides[config.KeyNotifyEnabled] = !a.noNotify
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		return fmt.Errorf("apply flag overrides: %w", err)
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.settings = settings

	if err := debug.Init(settings.Paths.LogFile, settings.Debug); err != nil {
		fmt.Fprintf(a.stderr, "warning: %v\n", err)
	}
	return nil
}

func desktopNotifier(s config.Settings) notify.Notifier {
	if !s.Notify.Enabled {
		return notify.Log{}
	}
	return notify.NewDedupe(notify.NewMulti(notify.Log{}, notify.NewDesktopNotifier()), s.Notify.DedupeWindow)
}

func (a *app) keyring() credential.Keyring {
	user := a.settings.Release.KeyringUser
	if user == "" {
		user = defaultKeyringUser
	}
	return credential.New(a.settings.Release.KeyringService, user)
}

// newSource builds the release source. A keyring that cannot be read is
// logged and treated as "no token".
func (a *app) newSource() *update.Source {
	token, err := a.keyring().Resolve(a.settings.Release.Token)
	if err != nil {
		debug.Errorf("resolve release token: %v", err)
		token = ""
	}
	return update.NewSource(a.settings.Release.APIURL,
		update.WithToken(token),
		update.WithAssetPattern(a.settings.Release.AssetPattern),
	)
}

func (a *app) newManifest() *update.Manifest {
	return update.NewManifest(a.settings.Install.Dir, a.settings.Install.Manifest)
}

// openHistory opens the history store. Failure is logged and yields nil so
// updates still proceed without a record.
func (a *app) openHistory() *history.Store {
	store, err := history.Open(a.settings.Paths.HistoryDB)
	if err != nil {
		debug.Errorf("open history %s: %v", a.settings.Paths.HistoryDB, err)
		return nil
	}
	return store
}

func (a *app) buildCycle(src *update.Source, notifier notify.Notifier, store *history.Store) (*update.Cycle, error) {
	var installerOpts []update.InstallerOption
	if a.settings.Paths.TempDir != "" {
		installerOpts = append(installerOpts, update.WithTempDir(a.settings.Paths.TempDir))
	}

	deps := update.CycleDeps{
		Source:    src,
		Local:     a.newManifest(),
		Guard:     update.NewGuard(),
		Installer: update.NewInstaller(installerOpts...),
		Notifier:  notifier,
	}
	if store != nil {
		deps.Recorder = store
	}
	return update.NewCycle(update.CycleConfig{
		InstallDir:  a.settings.Install.Dir,
		ProcessName: a.settings.Install.ProcessName,
	}, deps)
}
