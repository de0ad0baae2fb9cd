// Package metrics holds the error taxonomy shared by every metric source.
// All of these except ErrNoProcesses are handled at the collector or ranker
// boundary and never end a sampling tick.
package metrics

import "errors"

var (
	// ErrSensorUnavailable is returned when a metric's source does not exist on this host
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrDeviceAbsent is returned when no GPU exists at the requested index
	ErrDeviceAbsent = errors.New("device absent")

	// ErrCollectionTimeout is returned when a metric read exceeds its budget
	ErrCollectionTimeout = errors.New("collection timeout")

	// ErrProcessVanished is returned when a process exits between enumeration and read
	ErrProcessVanished = errors.New("process vanished")

	// ErrAccessDenied is returned when a process's details cannot be read
	ErrAccessDenied = errors.New("access denied")

	// ErrZombieProcess is returned for processes that exited but were not reaped
	ErrZombieProcess = errors.New("zombie process")

	// ErrNoProcesses is returned when processes cannot be enumerated at all
	ErrNoProcesses = errors.New("failed to enumerate processes")
)

// IsProcessSkip reports whether err only disqualifies a single process
func IsProcessSkip(err error) bool {
	return errors.Is(err, ErrProcessVanished) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrZombieProcess)
}
