// Package domain defines the core types of the netpulse network hierarchy.
//
// The hierarchy is a strict ownership tree:
//
//	Network -> Building -> Router -> Switch -> EndDevice
//
// Every node carries an explicit NodeKind, so callers never infer a node's
// kind from the shape of its attributes.
//
// # Core Types
//
// Node is a single entity in the tree. Parent-to-child ownership is stored
// twice: the child's ParentID and the parent's Children collection (the
// backlink). The two must always agree.
//
// Target is the flattened (id, address, kind) tuple handed to the probe
// layer by a monitoring sweep.
//
// Event is what the broadcaster delivers to subscribers: either a status
// change for a single node or a structural topology change.
//
// # Errors
//
// The error taxonomy is exposed as sentinel errors (ErrParentNotFound,
// ErrDuplicateID, ...) which are wrapped with context and tested with
// errors.Is.
package domain
