package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err, "failed to create test repository")
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// seedHQ creates network -> building HQ -> router R1 -> switch S1 -> device D1
func seedHQ(t *testing.T, repo *Repository) (net, hq, r1, s1, d1 *domain.Node) {
	t.Helper()
	ctx := context.Background()

	net = domain.NewNamedNode("net", domain.KindNetwork, "", "Campus")
	hq = domain.NewNamedNode("hq", domain.KindBuilding, "net", "HQ")
	r1 = domain.NewNode("r1", domain.KindRouter, "hq", domain.Attributes{ExternalID: "R1", Address: "10.0.0.1"})
	s1 = domain.NewNode("s1", domain.KindSwitch, "r1", domain.Attributes{ExternalID: "S1", Address: "10.0.0.2"})
	d1 = domain.NewNode("d1", domain.KindEndDevice, "s1", domain.Attributes{ExternalID: "D1", Address: "10.0.0.3"})

	for _, n := range []*domain.Node{net, hq, r1, s1, d1} {
		require.NoError(t, repo.InsertChild(ctx, n), "insert %s", n.ID)
	}
	return net, hq, r1, s1, d1
}

// getNode returns one persisted node, or nil when absent
func getNode(ctx context.Context, repo *Repository, id string) (*domain.Node, error) {
	nodes, err := repo.LoadNodes(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullString
		expected string
	}{
		{"valid string", sql.NullString{String: "test", Valid: true}, "test"},
		{"invalid string", sql.NullString{String: "test", Valid: false}, ""},
		{"empty valid string", sql.NullString{String: "", Valid: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nullToString(tt.input))
		})
	}
}

func TestStringToNull(t *testing.T) {
	assert.Equal(t, sql.NullString{String: "x", Valid: true}, stringToNull("x"))
	assert.Equal(t, sql.NullString{}, stringToNull(""))
}

// ============================================================================
// Repository Tests
// ============================================================================

func TestInsertChildAndLoad(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	nodes, err := repo.LoadNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 5)

	byID := make(map[string]*domain.Node)
	for _, n := range nodes {
		byID[n.ID] = n
	}

	assert.Equal(t, []string{"hq"}, byID["net"].Children)
	assert.Equal(t, []string{"r1"}, byID["hq"].Children)
	assert.Equal(t, []string{"s1"}, byID["r1"].Children)
	assert.Equal(t, []string{"d1"}, byID["s1"].Children)
	assert.Empty(t, byID["d1"].Children)

	d1 := byID["d1"]
	assert.Equal(t, domain.KindEndDevice, d1.Kind)
	assert.Equal(t, "D1", d1.ExternalID)
	assert.Equal(t, "10.0.0.3", d1.Address)
	assert.Equal(t, domain.StatusActive, d1.Status)
	assert.Equal(t, "s1", d1.ParentID)
}

func TestChildOrderIsPreserved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, _, s1, _ := seedHQ(t, repo)

	for _, id := range []string{"d2", "d3", "d4"} {
		n := domain.NewNode(id, domain.KindEndDevice, s1.ID, domain.Attributes{ExternalID: id, Address: "10.0.1.1"})
		require.NoError(t, repo.InsertChild(ctx, n))
	}

	got, err := getNode(ctx, repo, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3", "d4"}, got.Children)
}

func TestInsertChildMissingParentRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	orphan := domain.NewNode("x", domain.KindSwitch, "ghost", domain.Attributes{ExternalID: "X", Address: "10.9.9.9"})
	err := repo.InsertChild(ctx, orphan)
	require.ErrorIs(t, err, domain.ErrParentNotFound)

	got, err := getNode(ctx, repo, "x")
	require.NoError(t, err)
	assert.Nil(t, got, "node record must not persist without its backlink")
}

func TestInsertChildDuplicateExternalID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	dup := domain.NewNode("r2", domain.KindRouter, "hq", domain.Attributes{ExternalID: "R1", Address: "10.0.0.9"})
	err := repo.InsertChild(ctx, dup)
	require.ErrorIs(t, err, domain.ErrDuplicateID)

	hq, err := getNode(ctx, repo, "hq")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, hq.Children)
}

func TestDeleteChildDoesNotCascade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	require.NoError(t, repo.DeleteChild(ctx, "s1", "r1"))

	s1, err := getNode(ctx, repo, "s1")
	require.NoError(t, err)
	assert.Nil(t, s1)

	r1, err := getNode(ctx, repo, "r1")
	require.NoError(t, err)
	assert.Empty(t, r1.Children)

	d1, err := getNode(ctx, repo, "d1")
	require.NoError(t, err)
	require.NotNil(t, d1, "descendants are not deleted")
	assert.Equal(t, "s1", d1.ParentID)

	nodes, err := repo.LoadNodes(ctx)
	require.NoError(t, err)
	for _, n := range nodes {
		assert.NotContains(t, n.Children, "s1")
	}
}

func TestDeleteChildNotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.DeleteChild(context.Background(), "missing", "")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestChildRefPrimitives(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	require.NoError(t, repo.RemoveChildRef(ctx, "r1", "s1"))
	assert.ErrorIs(t, repo.RemoveChildRef(ctx, "r1", "s1"), domain.ErrNodeNotFound)

	require.NoError(t, repo.AddChildRef(ctx, "r1", "s1"))
	require.NoError(t, repo.AddChildRef(ctx, "r1", "s1"), "adding an existing ref is a no-op")

	r1, err := getNode(ctx, repo, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, r1.Children)

	assert.ErrorIs(t, repo.AddChildRef(ctx, "ghost", "s1"), domain.ErrParentNotFound)
}

func TestUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	require.NoError(t, repo.UpdateStatus(ctx, "s1", domain.StatusInactive))

	s1, err := getNode(ctx, repo, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, s1.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "ghost", domain.StatusActive), domain.ErrNodeNotFound)
	assert.Error(t, repo.UpdateStatus(ctx, "s1", domain.Status("bogus")), "status domain is enforced by the schema")
}

func TestSaveNodeUpserts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	r1, err := getNode(ctx, repo, "r1")
	require.NoError(t, err)
	r1.Address = "10.0.0.100"
	r1.Port = 8080
	require.NoError(t, repo.SaveNode(ctx, r1))

	got, err := getNode(ctx, repo, "r1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.100", got.Address)
	assert.Equal(t, 8080, got.Port)
	assert.Equal(t, []string{"s1"}, got.Children, "save does not touch backlinks")
}

func TestBuildingNameUnique(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedHQ(t, repo)

	dup := domain.NewNamedNode("hq2", domain.KindBuilding, "net", "HQ")
	assert.ErrorIs(t, repo.InsertChild(ctx, dup), domain.ErrDuplicateID)
}
