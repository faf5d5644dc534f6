package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrProcessCheck wraps failures to enumerate processes.
var ErrProcessCheck = fmt.Errorf("process check failed")

// NameLister returns the image names of all running processes.
type NameLister func(ctx context.Context) ([]string, error)

// Guard reports whether the monitored application is running.
type Guard struct {
	list NameLister
}

// NewGuard returns a Guard backed by the OS process table.
func NewGuard() *Guard {
	return &Guard{list: listProcessNames}
}

// NewGuardWithLister returns a Guard using a custom lister.
func NewGuardWithLister(list NameLister) *Guard {
	return &Guard{list: list}
}

// IsRunning reports whether a process with the given image name exists.
// Names compare case-insensitively and a trailing ".exe" is ignored on
// either side.
func (g *Guard) IsRunning(ctx context.Context, imageName string) (bool, error) {
	names, err := g.list(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProcessCheck, err)
	}
	want := normalizeImageName(imageName)
	for _, name := range names {
		if normalizeImageName(name) == want {
			return true, nil
		}
	}
	return false, nil
}

func normalizeImageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

func listProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// Processes can exit between enumeration and lookup.
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
