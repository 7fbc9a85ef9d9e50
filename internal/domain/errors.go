package domain

import "errors"

// Mutation errors are reported synchronously and never retried
var (
	ErrParentNotFound = errors.New("parent not found")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrNodeNotFound   = errors.New("node not found")
	ErrInvalidKind    = errors.New("invalid kind")
	ErrInvalidNode    = errors.New("invalid node")
)

// Probe errors stay inside a sweep; a failed target counts as inactive
var (
	ErrProbeTimeout   = errors.New("probe timeout")
	ErrProbeTransport = errors.New("probe transport error")
)

// ErrStoreUnavailable aborts the in-progress operation without partial state
var ErrStoreUnavailable = errors.New("store unavailable")
