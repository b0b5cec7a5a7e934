package monitor

import "errors"

var (
	// ErrTargetExists indicates a target name is already registered.
	ErrTargetExists = errors.New("monitor: target already registered")

	// ErrTargetNotFound indicates no target has the given name.
	ErrTargetNotFound = errors.New("monitor: target not found")

	// ErrInvalidTarget indicates a target is missing its name, connection or checker.
	ErrInvalidTarget = errors.New("monitor: invalid target")

	// ErrStarted indicates Run was already called.
	ErrStarted = errors.New("monitor: scheduler already started")
)
