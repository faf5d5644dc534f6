//go:build darwin

package notify

import (
	"os/exec"
	"strings"

	"patchwatch/internal/debug"
)

const appName = "patchwatch"

type darwinNotifier struct{}

func newPlatformNotifier() Notifier {
	return &darwinNotifier{}
}

// Send shows the app name as the banner title and the notification title
// as its subtitle, mirroring --app-name on Linux.
func (d *darwinNotifier) Send(n Notification) error {
	path, err := exec.LookPath("osascript")
	if err != nil {
		debug.Logf("notify: osascript not found, skipping desktop notification")
		return nil
	}
	return exec.Command(path, "-e", displayScript(n)).Run()
}

func (d *darwinNotifier) Name() string { return "darwin" }

func displayScript(n Notification) string {
	script := "display notification " + appleString(n.Message) + " with title " + appleString(appName)
	if n.Title != "" && n.Title != appName {
		script += " subtitle " + appleString(n.Title)
	}
	return script
}

// appleString quotes s as an AppleScript string literal.
func appleString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	return `"` + s + `"`
}
