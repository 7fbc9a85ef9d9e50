// Package repository defines the persistence contract for the netpulse
// hierarchy.
//
// The topology store keeps the authoritative in-memory index and writes
// through to a Repository. The sqlite subpackage is the only driver.
//
// # SQLite Implementation
//
// Nodes live in a single table keyed by id and tagged with their kind.
// Child collections live in node_children, ordered by position, so the
// backlink of a parent is an explicit row rather than an array column.
// Deleting a node cascades to its own child collection rows but never to
// the child node records themselves.
package repository
