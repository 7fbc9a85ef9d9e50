package repository

import (
	"context"

	"netpulse/internal/domain"
)

// Repository is the persistence driver behind the topology store.
// Every method that touches both a node record and a backlink runs as a
// single transaction: either both changes persist or neither does.
type Repository interface {
	// LoadNodes returns every node with its ordered child collection
	LoadNodes(ctx context.Context) ([]*domain.Node, error)

	// SaveNode inserts or updates a node record without touching backlinks
	SaveNode(ctx context.Context, node *domain.Node) error

	// InsertChild creates the node and appends it to its parent's children
	InsertChild(ctx context.Context, node *domain.Node) error

	// DeleteChild removes the backlink from parentID and deletes the node record
	DeleteChild(ctx context.Context, id, parentID string) error

	// Edge primitives
	AddChildRef(ctx context.Context, parentID, childID string) error
	RemoveChildRef(ctx context.Context, parentID, childID string) error

	// UpdateStatus persists a liveness change
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	// Close releases resources
	Close() error
}
