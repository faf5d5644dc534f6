package main

import (
	"fmt"
	"io"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/spf13/cobra"
)

// Version information - injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading so version works without a config file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			printVersion(a.stdout)
		},
	}
}

func printVersion(w io.Writer) {
	p := newPalette(w)
	line := p.title.Render("patchwatch") + " " + p.value.Render("version "+Version)
	if Build != "unknown" && Build != "" {
		line += p.dim.Render(fmt.Sprintf(" (build: %s)", Build))
	}
	if BuildTime != "" {
		line += p.dim.Render(fmt.Sprintf(" [%s]", BuildTime))
	}
	fmt.Fprintln(w, line)

	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if Version == "dev" {
		if info, ok := rtdebug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					fmt.Fprintf(w, "Commit: %s\n", setting.Value[:7])
					break
				}
			}
		}
	}
}
