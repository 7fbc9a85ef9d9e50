// Package topology owns the network hierarchy.
//
// Store keeps an indexed in-memory copy of every node and writes through to
// a repository.Repository. The in-memory index only changes after the
// persistence call for the same step has succeeded, so a failed write never
// leaves partial state behind.
//
// Locking: writes that touch a parent's child collection hold that parent's
// key lock for the whole read-persist-commit sequence. Deleting a node also
// holds the node's own key so nothing can be inserted beneath it meanwhile.
// Keys are always taken ancestor first.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/repository"
)

// NewID returns a fresh node identity
func NewID() string {
	return uuid.NewString()
}

// Store is the single shared owner of node identity and hierarchy state
type Store struct {
	repo   repository.Repository
	logger *zap.Logger
	locks  *keyedMutex

	mu      sync.RWMutex
	nodes   map[string]*domain.Node
	keys    map[domain.NodeKind]map[string]string
	pending map[string]struct{}
	rootID  string

	// set while a network insert is being persisted
	rootPending bool
}

// Open builds a store and loads the persisted hierarchy from repo.
// A nil repo gives a purely in-memory store.
func Open(ctx context.Context, repo repository.Repository, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		repo:    repo,
		logger:  logger.Named("topology"),
		locks:   newKeyedMutex(),
		nodes:   make(map[string]*domain.Node),
		keys:    make(map[domain.NodeKind]map[string]string),
		pending: make(map[string]struct{}),
	}
	for _, k := range domain.Kinds {
		s.keys[k] = make(map[string]string)
	}

	if repo == nil {
		return s, nil
	}

	nodes, err := repo.LoadNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hierarchy: %w: %w", domain.ErrStoreUnavailable, err)
	}
	for _, n := range nodes {
		s.index(n)
	}
	s.logger.Info("hierarchy loaded", zap.Int("nodes", len(nodes)), zap.String("root", s.rootID))
	return s, nil
}

// index adds n to the in-memory maps. Caller holds s.mu.
func (s *Store) index(n *domain.Node) {
	if n.Children == nil {
		n.Children = []string{}
	}
	s.nodes[n.ID] = n
	if key := n.Key(); key != "" {
		s.keys[n.Kind][key] = n.ID
	}
	if n.Kind == domain.KindNetwork && s.rootID == "" {
		s.rootID = n.ID
	}
}

// unindex removes n from the in-memory maps. Caller holds s.mu.
func (s *Store) unindex(n *domain.Node) {
	delete(s.nodes, n.ID)
	if key := n.Key(); key != "" && s.keys[n.Kind][key] == n.ID {
		delete(s.keys[n.Kind], key)
	}
	if s.rootID == n.ID {
		s.rootID = ""
	}
}

// Get returns a copy of the node with the given id
func (s *Store) Get(id string) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}
	return n.Clone(), nil
}

// Root returns the network node
func (s *Store) Root() (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rootID == "" {
		return nil, fmt.Errorf("network: %w", domain.ErrNodeNotFound)
	}
	return s.nodes[s.rootID].Clone(), nil
}

// Lookup finds a node by its per-kind key (name or external id)
func (s *Store) Lookup(kind domain.NodeKind, key string) (*domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[kind][key]
	if !ok {
		return nil, false
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// ListKind returns copies of every node of the given kind, orphans included
func (s *Store) ListKind(kind domain.NodeKind) []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Node
	for _, n := range s.nodes {
		if n.Kind == kind {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Len returns the number of stored nodes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Put updates the record of an existing node (name, address, port, status)
// or creates the root network. It never changes parent references or child
// collections; use InsertChild for anything with a parent.
func (s *Store) Put(ctx context.Context, node *domain.Node) error {
	if !node.Kind.Valid() {
		return fmt.Errorf("put %s: %w: %q", node.ID, domain.ErrInvalidKind, node.Kind)
	}
	if node.Kind.Addressable() {
		if !node.Status.Valid() {
			return fmt.Errorf("put %s: %w: status %q", node.ID, domain.ErrInvalidNode, node.Status)
		}
		if err := node.Attributes().Validate(); err != nil {
			return fmt.Errorf("put %s: %w", node.ID, err)
		}
	}

	unlock := s.locks.Lock(node.ID)
	defer unlock()

	s.mu.RLock()
	existing, ok := s.nodes[node.ID]
	var current *domain.Node
	if ok {
		current = existing.Clone()
	}
	s.mu.RUnlock()

	if !ok {
		if node.ParentID != "" {
			return fmt.Errorf("put %s: %w: nodes with a parent are created with InsertChild", node.ID, domain.ErrInvalidNode)
		}
		return s.InsertChild(ctx, node)
	}

	if current.Kind != node.Kind || current.Key() != node.Key() {
		return fmt.Errorf("put %s: %w: kind and key are immutable", node.ID, domain.ErrInvalidNode)
	}

	updated := current.Clone()
	updated.Name = node.Name
	updated.Address = node.Address
	updated.Port = node.Port
	updated.Status = node.Status
	updated.UpdatedAt = time.Now().UTC()

	if s.repo != nil {
		if err := s.repo.SaveNode(ctx, updated); err != nil {
			return storeErr("put "+node.ID, err)
		}
	}

	s.mu.Lock()
	if n, ok := s.nodes[node.ID]; ok {
		n.Name, n.Address, n.Port, n.Status, n.UpdatedAt = updated.Name, updated.Address, updated.Port, updated.Status, updated.UpdatedAt
	}
	s.mu.Unlock()
	return nil
}

// InsertChild creates node and appends it to its parent's child collection
// as a single step. The parent must exist and be of the kind that owns
// node.Kind. A node without a parent is accepted only as the network root.
func (s *Store) InsertChild(ctx context.Context, node *domain.Node) error {
	if !node.Kind.Valid() {
		return fmt.Errorf("insert %s: %w: %q", node.ID, domain.ErrInvalidKind, node.Kind)
	}
	if node.ID == "" {
		node.ID = NewID()
	}
	if node.Children == nil {
		node.Children = []string{}
	}
	if node.Kind.Addressable() {
		if node.Status == "" {
			node.Status = domain.StatusActive
		}
		if !node.Status.Valid() {
			return fmt.Errorf("insert %s: %w: status %q", node.ID, domain.ErrInvalidNode, node.Status)
		}
		if err := node.Attributes().Validate(); err != nil {
			return fmt.Errorf("insert %s: %w", node.ID, err)
		}
	}

	if node.ParentID != "" {
		unlock := s.locks.Lock(node.ParentID)
		defer unlock()
	}

	s.mu.Lock()
	if err := s.checkInsertLocked(node); err != nil {
		s.mu.Unlock()
		return err
	}
	key := node.Key()
	if key != "" {
		s.keys[node.Kind][key] = node.ID
	}
	s.pending[node.ID] = struct{}{}
	isRoot := node.Kind == domain.KindNetwork
	if isRoot {
		s.rootPending = true
	}
	s.mu.Unlock()

	var persistErr error
	if s.repo != nil {
		persistErr = s.repo.InsertChild(ctx, node)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, node.ID)
	if isRoot {
		s.rootPending = false
	}
	if persistErr != nil {
		if key != "" && s.keys[node.Kind][key] == node.ID {
			delete(s.keys[node.Kind], key)
		}
		return storeErr("insert "+node.ID, persistErr)
	}

	stored := node.Clone()
	s.index(stored)
	if stored.ParentID != "" {
		parent := s.nodes[stored.ParentID]
		parent.Children = append(parent.Children, stored.ID)
	}

	s.logger.Debug("node inserted",
		zap.String("node_id", stored.ID),
		zap.String("kind", string(stored.Kind)),
		zap.String("parent_id", stored.ParentID))
	return nil
}

// checkInsertLocked validates an insert against the index. Caller holds s.mu.
func (s *Store) checkInsertLocked(node *domain.Node) error {
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("insert %s: %w: id already in use", node.ID, domain.ErrDuplicateID)
	}
	if _, reserved := s.pending[node.ID]; reserved {
		return fmt.Errorf("insert %s: %w: id already in use", node.ID, domain.ErrDuplicateID)
	}

	wantParent, hasParent := node.Kind.ParentKind()
	switch {
	case !hasParent:
		if node.ParentID != "" {
			return fmt.Errorf("insert %s: %w: network cannot have a parent", node.ID, domain.ErrInvalidNode)
		}
		if s.rootID != "" || s.rootPending {
			return fmt.Errorf("insert %s: %w: network already exists", node.ID, domain.ErrDuplicateID)
		}
	case node.ParentID == "":
		return fmt.Errorf("insert %s: %w: %s requires a %s parent", node.ID, domain.ErrParentNotFound, node.Kind, wantParent)
	default:
		parent, ok := s.nodes[node.ParentID]
		if !ok || parent.Kind != wantParent {
			return fmt.Errorf("insert %s: %w: no %s with id %s", node.ID, domain.ErrParentNotFound, wantParent, node.ParentID)
		}
	}

	key := node.Key()
	if key == "" {
		return fmt.Errorf("insert %s: %w: %s requires a name or external id", node.ID, domain.ErrInvalidNode, node.Kind)
	}
	if _, taken := s.keys[node.Kind][key]; taken {
		return fmt.Errorf("insert %s: %w: %s %q already exists", node.ID, domain.ErrDuplicateID, node.Kind, key)
	}
	return nil
}

// DetachAndDelete removes id from its parent's child collection and deletes
// the node record as a single step. The node's own children are left in
// place with their parent reference unchanged.
func (s *Store) DetachAndDelete(ctx context.Context, id string) (*domain.Node, error) {
	s.mu.RLock()
	n, ok := s.nodes[id]
	var parentID string
	if ok {
		parentID = n.ParentID
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}

	if parentID != "" {
		unlockParent := s.locks.Lock(parentID)
		defer unlockParent()
	}
	unlockSelf := s.locks.Lock(id)
	defer unlockSelf()

	s.mu.RLock()
	n, ok = s.nodes[id]
	var removed *domain.Node
	if ok {
		removed = n.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}

	if s.repo != nil {
		if err := s.repo.DeleteChild(ctx, id, parentID); err != nil {
			return nil, storeErr("delete "+id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if parent, ok := s.nodes[parentID]; ok {
		parent.Children = without(parent.Children, id)
	}
	s.unindex(n)

	s.logger.Debug("node deleted",
		zap.String("node_id", id),
		zap.String("kind", string(removed.Kind)),
		zap.Int("orphaned_children", len(removed.Children)))
	return removed, nil
}

// AddChildRef appends childID to parentID's child collection. The child must
// already name parentID as its parent.
func (s *Store) AddChildRef(ctx context.Context, parentID, childID string) error {
	unlock := s.locks.Lock(parentID)
	defer unlock()

	s.mu.RLock()
	parent, pok := s.nodes[parentID]
	child, cok := s.nodes[childID]
	var linked, mismatch bool
	if pok && cok {
		linked = parent.HasChild(childID)
		mismatch = child.ParentID != parentID
	}
	s.mu.RUnlock()

	switch {
	case !pok:
		return fmt.Errorf("parent %s: %w", parentID, domain.ErrParentNotFound)
	case !cok:
		return fmt.Errorf("child %s: %w", childID, domain.ErrNodeNotFound)
	case mismatch:
		return fmt.Errorf("child %s: %w: parent reference is not %s", childID, domain.ErrInvalidNode, parentID)
	case linked:
		return nil
	}

	if s.repo != nil {
		if err := s.repo.AddChildRef(ctx, parentID, childID); err != nil {
			return storeErr("add child ref", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.nodes[parentID]; ok && !p.HasChild(childID) {
		p.Children = append(p.Children, childID)
	}
	return nil
}

// RemoveChildRef drops childID from parentID's child collection. On its own
// this leaves a child pointing at a parent that no longer lists it; callers
// that delete nodes want DetachAndDelete instead.
func (s *Store) RemoveChildRef(ctx context.Context, parentID, childID string) error {
	unlock := s.locks.Lock(parentID)
	defer unlock()

	s.mu.RLock()
	parent, ok := s.nodes[parentID]
	linked := ok && parent.HasChild(childID)
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("parent %s: %w", parentID, domain.ErrParentNotFound)
	}
	if !linked {
		return fmt.Errorf("child %s of %s: %w", childID, parentID, domain.ErrNodeNotFound)
	}

	if s.repo != nil {
		if err := s.repo.RemoveChildRef(ctx, parentID, childID); err != nil {
			return storeErr("remove child ref", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.nodes[parentID]; ok {
		p.Children = without(p.Children, childID)
	}
	return nil
}

// SetStatus persists a liveness status for an addressable node.
// It reports whether the stored value changed.
func (s *Store) SetStatus(ctx context.Context, id string, status domain.Status) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("set status %s: %w: status %q", id, domain.ErrInvalidNode, status)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	n, ok := s.nodes[id]
	var current domain.Status
	var kind domain.NodeKind
	if ok {
		current = n.Status
		kind = n.Kind
	}
	s.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}
	if !kind.Addressable() {
		return false, fmt.Errorf("set status %s: %w: %s has no status", id, domain.ErrInvalidKind, kind)
	}
	if current == status {
		return false, nil
	}

	if s.repo != nil {
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return false, storeErr("set status "+id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		n.Status = status
		n.UpdatedAt = time.Now().UTC()
	}
	return true, nil
}

// Flatten walks the hierarchy depth first from the root and returns every
// addressable node reachable through child collections. Orphans are skipped.
func (s *Store) Flatten() []domain.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []domain.Target
	if s.rootID == "" {
		return targets
	}

	var walk func(id string)
	walk = func(id string) {
		n, ok := s.nodes[id]
		if !ok {
			return
		}
		if n.Kind.Addressable() {
			targets = append(targets, domain.Target{
				NodeID:  n.ID,
				Address: n.Address,
				Port:    n.Port,
				Kind:    n.Kind,
			})
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(s.rootID)
	return targets
}

// Hierarchy returns the nested tree under the root, or nil if there is no network
func (s *Store) Hierarchy() *domain.TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.nodes[s.rootID]
	if !ok {
		return nil
	}

	var build func(n *domain.Node) *domain.TreeNode
	build = func(n *domain.Node) *domain.TreeNode {
		tn := domain.NewTreeNode(n)
		for _, id := range n.Children {
			if child, ok := s.nodes[id]; ok {
				tn.Children = append(tn.Children, build(child))
			}
		}
		return tn
	}
	return build(root)
}

// Check verifies every structural invariant over the whole index:
// the parent/child biconditional, parent/child kind compatibility, per-kind
// key uniqueness and the status domain. Children whose parent no longer exists are allowed.
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	seen := make(map[domain.NodeKind]map[string]string)

	for id, n := range s.nodes {
		if !n.Kind.Valid() {
			errs = append(errs, fmt.Errorf("%s: invalid kind %q", id, n.Kind))
		}
		if n.Kind.Addressable() && !n.Status.Valid() {
			errs = append(errs, fmt.Errorf("%s: status %q outside domain", id, n.Status))
		}

		if seen[n.Kind] == nil {
			seen[n.Kind] = make(map[string]string)
		}
		if other, dup := seen[n.Kind][n.Key()]; dup {
			errs = append(errs, fmt.Errorf("%s and %s share %s key %q", id, other, n.Kind, n.Key()))
		}
		seen[n.Kind][n.Key()] = id

		if n.ParentID != "" {
			if parent, ok := s.nodes[n.ParentID]; ok && !parent.HasChild(id) {
				errs = append(errs, fmt.Errorf("%s: parent %s does not list it", id, n.ParentID))
			}
		}

		dups := make(map[string]bool, len(n.Children))
		for _, childID := range n.Children {
			if dups[childID] {
				errs = append(errs, fmt.Errorf("%s: child %s listed twice", id, childID))
			}
			dups[childID] = true

			child, ok := s.nodes[childID]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: dangling child reference %s", id, childID))
				continue
			}
			if child.ParentID != id {
				errs = append(errs, fmt.Errorf("%s: child %s points at parent %s", id, childID, child.ParentID))
			}
			if want, ok := n.Kind.ChildKind(); !ok || child.Kind != want {
				errs = append(errs, fmt.Errorf("%s: %s cannot own %s %s", id, n.Kind, child.Kind, childID))
			}
		}
	}

	return errors.Join(errs...)
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// storeErr keeps domain sentinels visible and classifies anything else as
// the store being unavailable.
func storeErr(op string, err error) error {
	for _, sentinel := range []error{
		domain.ErrStoreUnavailable,
		domain.ErrDuplicateID,
		domain.ErrParentNotFound,
		domain.ErrNodeNotFound,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
