package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the liveness state of an addressable node
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is in the status domain
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// StatusFromAlive maps a probe verdict onto the status domain
func StatusFromAlive(alive bool) Status {
	if alive {
		return StatusActive
	}
	return StatusInactive
}

// Node is one entity of the hierarchy
type Node struct {
	ID         string    `json:"id"`
	Kind       NodeKind  `json:"kind"`
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id,omitempty"`
	Address    string    `json:"address,omitempty"`
	Port       int       `json:"port,omitempty"`
	Status     Status    `json:"status,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	Children   []string  `json:"children"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the store's child slice
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Children = slices.Clone(n.Children)
	return &c
}

// HasChild reports whether id is in the node's child collection
func (n *Node) HasChild(id string) bool {
	return slices.Contains(n.Children, id)
}

// Key returns the identity used for uniqueness checks within the node's kind:
// the name for networks and buildings, the external id otherwise.
func (n *Node) Key() string {
	if n.Kind.Named() {
		return n.Name
	}
	return n.ExternalID
}

// Attributes returns the caller-supplied fields of an addressable node
func (n *Node) Attributes() Attributes {
	return Attributes{
		ExternalID: n.ExternalID,
		Name:       n.Name,
		Address:    n.Address,
		Port:       n.Port,
	}
}

// Attributes are the caller-supplied fields of a new router, switch or device
type Attributes struct {
	ExternalID string `json:"externalId" yaml:"external_id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Address    string `json:"address" yaml:"address"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Validate checks the attributes required for an addressable node
func (a Attributes) Validate() error {
	if strings.TrimSpace(a.ExternalID) == "" {
		return fmt.Errorf("%w: external id required", ErrInvalidNode)
	}
	if strings.TrimSpace(a.Address) == "" {
		return fmt.Errorf("%w: address required", ErrInvalidNode)
	}
	if a.Port < 0 || a.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidNode, a.Port)
	}
	return nil
}

// NewNode creates an addressable node of the given kind. Status defaults to active.
func NewNode(id string, kind NodeKind, parentID string, attrs Attributes) *Node {
	now := time.Now().UTC()
	name := attrs.Name
	if name == "" {
		name = attrs.ExternalID
	}
	return &Node{
		ID:         id,
		Kind:       kind,
		Name:       name,
		ExternalID: attrs.ExternalID,
		Address:    attrs.Address,
		Port:       attrs.Port,
		Status:     StatusActive,
		ParentID:   parentID,
		Children:   []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewNamedNode creates a network or building
func NewNamedNode(id string, kind NodeKind, parentID, name string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:        id,
		Kind:      kind,
		Name:      name,
		ParentID:  parentID,
		Children:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Target is one entry of a flattened hierarchy handed to the prober
type Target struct {
	NodeID  string   `json:"node_id"`
	Address string   `json:"address"`
	Port    int      `json:"port,omitempty"`
	Kind    NodeKind `json:"kind"`
}

// TreeNode is a nested, read-only view of the hierarchy
type TreeNode struct {
	ID         string      `json:"id" yaml:"id"`
	Kind       NodeKind    `json:"kind" yaml:"kind"`
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	ExternalID string      `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	Address    string      `json:"address,omitempty" yaml:"address,omitempty"`
	Port       int         `json:"port,omitempty" yaml:"port,omitempty"`
	Status     Status      `json:"status,omitempty" yaml:"status,omitempty"`
	Children   []*TreeNode `json:"children" yaml:"children,omitempty"`
}

// NewTreeNode copies the displayable fields of n
func NewTreeNode(n *Node) *TreeNode {
	return &TreeNode{
		ID:         n.ID,
		Kind:       n.Kind,
		Name:       n.Name,
		ExternalID: n.ExternalID,
		Address:    n.Address,
		Port:       n.Port,
		Status:     n.Status,
		Children:   []*TreeNode{},
	}
}
