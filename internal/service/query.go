package service

import (
	"fmt"
	"sort"

	"netpulse/internal/domain"
)

// ParentOption is a node that can own a new child of some kind
type ParentOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Hierarchy returns the nested tree under the network, or nil when empty
func (s *MutationService) Hierarchy() *domain.TreeNode {
	return s.store.Hierarchy()
}

// GetNode returns a single node
func (s *MutationService) GetNode(id string) (*domain.Node, error) {
	return s.store.Get(id)
}

// FindNode looks a node up by kind and key: name for networks and buildings,
// external id for everything else
func (s *MutationService) FindNode(kind domain.NodeKind, key string) (*domain.Node, bool) {
	return s.store.Lookup(kind, key)
}

// ParentCandidates lists the nodes that may own a new child of kind childKind:
// buildings for routers, routers for switches, switches for devices.
func (s *MutationService) ParentCandidates(childKind domain.NodeKind) ([]ParentOption, error) {
	if !childKind.Addressable() {
		return nil, fmt.Errorf("parent candidates: %w: %q", domain.ErrInvalidKind, childKind)
	}
	parentKind, _ := childKind.ParentKind()

	nodes := s.store.ListKind(parentKind)
	options := make([]ParentOption, 0, len(nodes))
	for _, n := range nodes {
		options = append(options, ParentOption{ID: n.ID, Name: n.Name})
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].Name == options[j].Name {
			return options[i].ID < options[j].ID
		}
		return options[i].Name < options[j].Name
	})
	return options, nil
}
