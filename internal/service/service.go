package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/metrics"
	"netpulse/internal/topology"
)

// Publisher receives topology events after structural changes
type Publisher interface {
	Publish(event domain.Event)
}

// MutationService adds and removes nodes while keeping the hierarchy consistent
type MutationService struct {
	store  *topology.Store
	events Publisher
	logger *zap.Logger
}

// NewMutationService creates a new mutation service
func NewMutationService(store *topology.Store, events Publisher, logger *zap.Logger) *MutationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationService{
		store:  store,
		events: events,
		logger: logger.Named("mutation"),
	}
}

// AddNode creates a router, switch or end device under parentID and returns its id
func (s *MutationService) AddNode(ctx context.Context, kind domain.NodeKind, parentID string, attrs domain.Attributes) (string, error) {
	if !kind.Addressable() {
		s.record("add", errInvalid)
		return "", fmt.Errorf("add node: %w: %q cannot be added", domain.ErrInvalidKind, kind)
	}
	attrs.ExternalID = strings.TrimSpace(attrs.ExternalID)
	attrs.Address = strings.TrimSpace(attrs.Address)
	if err := attrs.Validate(); err != nil {
		s.record("add", errInvalid)
		return "", fmt.Errorf("add %s: %w", kind, err)
	}

	node := domain.NewNode(topology.NewID(), kind, parentID, attrs)
	if err := s.store.InsertChild(ctx, node); err != nil {
		s.record("add", err)
		s.logger.Info("add node rejected",
			zap.String("kind", string(kind)),
			zap.String("parent_id", parentID),
			zap.String("external_id", attrs.ExternalID),
			zap.Error(err))
		return "", fmt.Errorf("add %s: %w", kind, err)
	}

	s.record("add", nil)
	s.logger.Info("node added",
		zap.String("node_id", node.ID),
		zap.String("kind", string(kind)),
		zap.String("parent_id", parentID),
		zap.String("address", node.Address))
	s.publish(domain.NewTopologyEvent(domain.EventNodeAdded, node))
	return node.ID, nil
}

// RemoveNode detaches a router, switch or end device from its parent and
// deletes it. Its own children are not deleted.
func (s *MutationService) RemoveNode(ctx context.Context, id string) error {
	existing, err := s.store.Get(id)
	if err != nil {
		s.record("remove", err)
		return fmt.Errorf("remove node: %w", err)
	}
	if !existing.Kind.Addressable() {
		s.record("remove", errInvalid)
		return fmt.Errorf("remove node %s: %w: %s cannot be removed", id, domain.ErrInvalidKind, existing.Kind)
	}

	removed, err := s.store.DetachAndDelete(ctx, id)
	if err != nil {
		s.record("remove", err)
		return fmt.Errorf("remove node: %w", err)
	}

	s.record("remove", nil)
	s.logger.Info("node removed",
		zap.String("node_id", id),
		zap.String("kind", string(removed.Kind)),
		zap.String("parent_id", removed.ParentID),
		zap.Int("orphaned_children", len(removed.Children)))
	s.publish(domain.NewTopologyEvent(domain.EventNodeDeleted, removed))
	return nil
}

// EnsureNetwork returns the network, creating it with the given name if the
// hierarchy is empty. An existing network under a different name is an error.
func (s *MutationService) EnsureNetwork(ctx context.Context, name string) (*domain.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("ensure network: %w: name required", domain.ErrInvalidNode)
	}

	if root, err := s.store.Root(); err == nil {
		if root.Name != name {
			return nil, fmt.Errorf("ensure network %q: %w: network %q already exists", name, domain.ErrDuplicateID, root.Name)
		}
		return root, nil
	}

	node := domain.NewNamedNode(topology.NewID(), domain.KindNetwork, "", name)
	if err := s.store.InsertChild(ctx, node); err != nil {
		if root, rerr := s.store.Root(); rerr == nil && root.Name == name {
			return root, nil
		}
		return nil, fmt.Errorf("ensure network: %w", err)
	}

	s.logger.Info("network created", zap.String("node_id", node.ID), zap.String("name", name))
	s.publish(domain.NewTopologyEvent(domain.EventNodeAdded, node))
	return node.Clone(), nil
}

// EnsureBuilding returns the building with the given name, creating it under
// the network if absent. Building names are globally unique.
func (s *MutationService) EnsureBuilding(ctx context.Context, name string) (*domain.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("ensure building: %w: name required", domain.ErrInvalidNode)
	}
	if b, ok := s.store.Lookup(domain.KindBuilding, name); ok {
		return b, nil
	}

	root, err := s.store.Root()
	if err != nil {
		return nil, fmt.Errorf("ensure building %q: %w", name, err)
	}

	node := domain.NewNamedNode(topology.NewID(), domain.KindBuilding, root.ID, name)
	if err := s.store.InsertChild(ctx, node); err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			if b, ok := s.store.Lookup(domain.KindBuilding, name); ok {
				return b, nil
			}
		}
		return nil, fmt.Errorf("ensure building: %w", err)
	}

	s.logger.Info("building created", zap.String("node_id", node.ID), zap.String("name", name))
	s.publish(domain.NewTopologyEvent(domain.EventNodeAdded, node))
	return node.Clone(), nil
}

func (s *MutationService) publish(event domain.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}

var errInvalid = errors.New("invalid")

// record counts a mutation outcome by error class
func (s *MutationService) record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrParentNotFound):
		result = "parent_not_found"
	case errors.Is(err, domain.ErrDuplicateID):
		result = "duplicate_id"
	case errors.Is(err, domain.ErrNodeNotFound):
		result = "node_not_found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		result = "store_unavailable"
	default:
		result = "invalid"
	}
	metrics.MutationsTotal.WithLabelValues(op, result).Inc()
}
