//go:build !darwin && !linux && !windows

package notify

func newPlatformNotifier() Notifier {
	return Nop{}
}
