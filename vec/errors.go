package vec

import "errors"

var (
	// ErrIndexNotReady is returned when an index cannot serve searches in
	// its current state.
	ErrIndexNotReady = errors.New("vec: index not ready")
	// ErrBuildInProgress is returned when a build is requested while another
	// build of the same index is running.
	ErrBuildInProgress = errors.New("vec: build in progress")
	// ErrIndexExists is returned when a registry already holds the name.
	ErrIndexExists = errors.New("vec: index already exists")
)
