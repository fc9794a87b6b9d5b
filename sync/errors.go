package sync

import "errors"

var (
	// ErrCycleRunning means a trigger fired while the previous cycle was
	// still executing. The trigger is dropped, never queued.
	ErrCycleRunning = errors.New("sync cycle already running")

	// ErrUnknownJob means the requested job id is not configured
	ErrUnknownJob = errors.New("unknown job id")

	// ErrWalkIncomplete marks a snapshot that must not drive deletions
	ErrWalkIncomplete = errors.New("remote walk incomplete")
)
