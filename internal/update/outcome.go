package update

// Outcome classifies the result of one cycle.
type Outcome int

const (
	// NoUpdateNeeded covers equal versions, a throttled or empty release
	// query, and an unreadable local version.
	NoUpdateNeeded Outcome = iota
	// UpdateApplied means the archive was downloaded, unpacked and removed.
	UpdateApplied
	// UpdateSkippedBusy means an update exists but the application is running.
	UpdateSkippedBusy
	// RemoteUnavailable means the release query failed.
	RemoteUnavailable
	// ConfigMissing means the install directory could not be found.
	ConfigMissing
	// Failed means the cycle aborted; Result.Err holds the reason.
	Failed
)

// String returns the string representation of an Outcome.
func (o Outcome) String() string {
	switch o {
	case NoUpdateNeeded:
		return "no-update-needed"
	case UpdateApplied:
		return "update-applied"
	case UpdateSkippedBusy:
		return "update-skipped-busy"
	case RemoteUnavailable:
		return "remote-unavailable"
	case ConfigMissing:
		return "config-missing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the transient record of one cycle.
type Result struct {
	Outcome   Outcome
	Installed string
	Latest    string
	Err       error
}
