package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/domain"
	"netpulse/internal/topology"
)

// recorder collects published events
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*MutationService, *topology.Store, *recorder) {
	t.Helper()
	store, err := topology.Open(context.Background(), nil, nil)
	require.NoError(t, err)
	rec := &recorder{}
	return NewMutationService(store, rec, nil), store, rec
}

// seedHQ creates Campus / HQ and returns the building id
func seedHQ(t *testing.T, svc *MutationService) string {
	t.Helper()
	ctx := context.Background()
	_, err := svc.EnsureNetwork(ctx, "Campus")
	require.NoError(t, err)
	b, err := svc.EnsureBuilding(ctx, "HQ")
	require.NoError(t, err)
	return b.ID
}

func attrs(ext, addr string) domain.Attributes {
	return domain.Attributes{ExternalID: ext, Address: addr}
}

func TestAddNodeBuildsChain(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)

	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)
	s1, err := svc.AddNode(ctx, domain.KindSwitch, r1, attrs("S1", "10.0.0.2"))
	require.NoError(t, err)
	d1, err := svc.AddNode(ctx, domain.KindEndDevice, s1, attrs("D1", "10.0.0.3"))
	require.NoError(t, err)

	d, err := svc.GetNode(d1)
	require.NoError(t, err)
	assert.Equal(t, s1, d.ParentID)
	assert.Equal(t, domain.StatusActive, d.Status)
	assert.Equal(t, "D1", d.Name)

	tree := svc.Hierarchy()
	require.NotNil(t, tree)
	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, r1, tree.Children[0].Children[0].ID)

	require.NoError(t, store.Check())
	assert.Equal(t, []domain.EventType{
		domain.EventNodeAdded, domain.EventNodeAdded,
		domain.EventNodeAdded, domain.EventNodeAdded, domain.EventNodeAdded,
	}, rec.types())
}

func TestAddNodeErrors(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)
	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)
	_, err = svc.AddNode(ctx, domain.KindSwitch, r1, attrs("S1", "10.0.0.2"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		kind     domain.NodeKind
		parentID string
		attrs    domain.Attributes
		wantErr  error
	}{
		{"unknown kind", "firewall", r1, attrs("F1", "10.0.0.9"), domain.ErrInvalidKind},
		{"building is not addable", domain.KindBuilding, "", attrs("B2", "10.0.0.9"), domain.ErrInvalidKind},
		{"missing parent", domain.KindSwitch, "ghost", attrs("S2", "10.0.0.9"), domain.ErrParentNotFound},
		{"wrong parent kind", domain.KindEndDevice, r1, attrs("D2", "10.0.0.9"), domain.ErrParentNotFound},
		{"duplicate external id", domain.KindSwitch, r1, attrs("S1", "10.0.0.9"), domain.ErrDuplicateID},
		{"missing address", domain.KindSwitch, r1, attrs("S3", ""), domain.ErrInvalidNode},
		{"blank external id", domain.KindSwitch, r1, attrs("  ", "10.0.0.9"), domain.ErrInvalidNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := store.Len()
			id, err := svc.AddNode(ctx, tt.kind, tt.parentID, tt.attrs)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)
			assert.Equal(t, before, store.Len())
		})
	}
}

func TestRemoveNodeLeavesChildrenInStorage(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)
	r1, _ := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	s1, _ := svc.AddNode(ctx, domain.KindSwitch, r1, attrs("S1", "10.0.0.2"))
	d1, _ := svc.AddNode(ctx, domain.KindEndDevice, s1, attrs("D1", "10.0.0.3"))

	require.NoError(t, svc.RemoveNode(ctx, s1))

	r, err := svc.GetNode(r1)
	require.NoError(t, err)
	assert.Empty(t, r.Children)

	_, err = svc.GetNode(s1)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	d, err := svc.GetNode(d1)
	require.NoError(t, err)
	assert.Equal(t, s1, d.ParentID)

	ids := make([]string, 0)
	for _, target := range store.Flatten() {
		ids = append(ids, target.NodeID)
	}
	assert.Equal(t, []string{r1}, ids)

	types := rec.types()
	assert.Equal(t, domain.EventNodeDeleted, types[len(types)-1])
}

func TestRemoveNodeErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)

	err := svc.RemoveNode(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	err = svc.RemoveNode(ctx, hq)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveNode(ctx, r1))
	assert.ErrorIs(t, svc.RemoveNode(ctx, r1), domain.ErrNodeNotFound)
}

func TestRemovedExternalIDCanBeReused(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)

	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveNode(ctx, r1))

	again, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)
	assert.NotEqual(t, r1, again)
}

func TestEnsureNetworkAndBuilding(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	n1, err := svc.EnsureNetwork(ctx, "Campus")
	require.NoError(t, err)
	n2, err := svc.EnsureNetwork(ctx, "Campus")
	require.NoError(t, err)
	assert.Equal(t, n1.ID, n2.ID)

	_, err = svc.EnsureNetwork(ctx, "Elsewhere")
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	_, err = svc.EnsureNetwork(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidNode)

	b1, err := svc.EnsureBuilding(ctx, "HQ")
	require.NoError(t, err)
	b2, err := svc.EnsureBuilding(ctx, "HQ")
	require.NoError(t, err)
	assert.Equal(t, b1.ID, b2.ID)
	assert.Equal(t, n1.ID, b1.ParentID)

	assert.Equal(t, 2, store.Len())
	assert.Len(t, rec.types(), 2, "only creations publish")
}

func TestEnsureBuildingWithoutNetwork(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.EnsureBuilding(context.Background(), "HQ")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestParentCandidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)
	annex, err := svc.EnsureBuilding(ctx, "Annex")
	require.NoError(t, err)
	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)

	opts, err := svc.ParentCandidates(domain.KindRouter)
	require.NoError(t, err)
	assert.Equal(t, []ParentOption{{ID: annex.ID, Name: "Annex"}, {ID: hq, Name: "HQ"}}, opts)

	opts, err = svc.ParentCandidates(domain.KindSwitch)
	require.NoError(t, err)
	assert.Equal(t, []ParentOption{{ID: r1, Name: "R1"}}, opts)

	opts, err = svc.ParentCandidates(domain.KindEndDevice)
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = svc.ParentCandidates(domain.KindBuilding)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
}

// TestRandomMutationsKeepHierarchyConsistent drives random add/remove
// sequences and checks the parent/child biconditional after every step.
func TestRandomMutationsKeepHierarchyConsistent(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			svc, store, _ := newTestService(t)
			ctx := context.Background()
			hq := seedHQ(t, svc)
			rng := rand.New(rand.NewSource(seed))

			parents := map[domain.NodeKind][]string{domain.KindBuilding: {hq}}
			var live []string

			for i := 0; i < 200; i++ {
				if len(live) > 0 && rng.Intn(3) == 0 {
					idx := rng.Intn(len(live))
					id := live[idx]
					live = append(live[:idx], live[idx+1:]...)
					require.NoError(t, svc.RemoveNode(ctx, id))
				} else {
					kinds := []domain.NodeKind{domain.KindRouter, domain.KindSwitch, domain.KindEndDevice}
					kind := kinds[rng.Intn(len(kinds))]
					pk, _ := kind.ParentKind()
					candidates := parents[pk]
					if len(candidates) == 0 {
						continue
					}
					parent := candidates[rng.Intn(len(candidates))]
					ext := fmt.Sprintf("%s-%d", kind, i)
					id, err := svc.AddNode(ctx, kind, parent, attrs(ext, fmt.Sprintf("10.0.%d.%d", i/250, i%250)))
					if err != nil {
						// parent was removed earlier
						require.ErrorIs(t, err, domain.ErrParentNotFound)
						continue
					}
					live = append(live, id)
					parents[kind] = append(parents[kind], id)
				}
				require.NoError(t, store.Check(), "step %d", i)
			}
		})
	}
}

func TestConcurrentAddsUnderOneParent(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	hq := seedHQ(t, svc)
	r1, err := svc.AddNode(ctx, domain.KindRouter, hq, attrs("R1", "10.0.0.1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddNode(ctx, domain.KindSwitch, r1, attrs(fmt.Sprintf("S%d", i), fmt.Sprintf("10.0.1.%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	r, err := svc.GetNode(r1)
	require.NoError(t, err)
	assert.Len(t, r.Children, 25)
	require.NoError(t, store.Check())
	assert.Len(t, rec.types(), 28)
}
