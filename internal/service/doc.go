// Package service implements the mutation and query operations the routing
// layer calls.
//
// MutationService is the only way nodes are created or destroyed. It
// validates kinds and attributes, delegates the atomic parent/child step to
// the topology store, and publishes a topology event after every successful
// structural change. It never caches node state between calls.
//
// Removing a node detaches it from its parent and deletes its record but
// leaves its descendants in storage with their parent reference unchanged.
// They are no longer reachable from the root and drop out of monitoring.
package service
