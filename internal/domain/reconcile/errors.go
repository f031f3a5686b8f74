package reconcile

import "errors"

var (
	// ErrListMonitors is returned when existing monitors cannot be queried.
	ErrListMonitors = errors.New("list existing monitors")
	// ErrCreateMonitor is returned when a monitor creation fails.
	ErrCreateMonitor = errors.New("create monitor")
	// ErrEmptyMonitorID is returned when the platform accepts a creation but
	// reports no entity ID.
	ErrEmptyMonitorID = errors.New("platform returned empty monitor id")
)
