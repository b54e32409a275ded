package aauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oarkflow/aauth"
	"github.com/oarkflow/aauth/stores"
)

func newOrgService(t *testing.T) (*aauth.OrganizationService, *stores.MemoryAssignmentStore, *aauth.OrganizationScope) {
	t.Helper()
	assignments := stores.NewMemoryAssignmentStore()
	svc := aauth.NewOrganizationService(stores.NewMemoryOrganizationStore(), nil, assignments, nil)
	scope := &aauth.OrganizationScope{Name: "Branch", Level: 1}
	if err := svc.CreateScope(context.Background(), scope); err != nil {
		t.Fatalf("create scope: %v", err)
	}
	return svc, assignments, scope
}

func mustNode(t *testing.T, svc *aauth.OrganizationService, scopeID int64, name string, parentID *int64) *aauth.OrganizationNode {
	t.Helper()
	node, err := svc.CreateNode(context.Background(), &aauth.OrganizationNode{ScopeID: scopeID, Name: name, ParentID: parentID})
	if err != nil {
		t.Fatalf("create node %s: %v", name, err)
	}
	return node
}

func TestCreateNodePathEncodesAncestry(t *testing.T) {
	svc, _, scope := newOrgService(t)

	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	if root.Path != "1" {
		t.Fatalf("root path = %q, want 1", root.Path)
	}
	child := mustNode(t, svc, scope.ID, "East", &root.ID)
	if child.Path != "1/2" {
		t.Fatalf("child path = %q, want 1/2", child.Path)
	}
	grand := mustNode(t, svc, scope.ID, "East-1", &child.ID)
	if grand.Path != "1/2/3" {
		t.Fatalf("grandchild path = %q, want 1/2/3", grand.Path)
	}
}

func TestCreateNodeRejectsDanglingRefs(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	if _, err := svc.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: 99, Name: "x"}); !errors.Is(err, aauth.ErrInvalidOrganizationScope) {
		t.Fatalf("dangling scope: err = %v", err)
	}
	missing := int64(42)
	if _, err := svc.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "x", ParentID: &missing}); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("dangling parent: err = %v", err)
	}
}

func TestMoveSubtreeRewritesDescendants(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil) // 1
	for i := 0; i < 3; i++ {                               // 2, 3, 4 as filler
		mustNode(t, svc, scope.ID, "filler", &root.ID)
	}
	oldParent := mustNode(t, svc, scope.ID, "Old", &root.ID) // 5
	newParent := mustNode(t, svc, scope.ID, "New", &root.ID) // 6
	moved := mustNode(t, svc, scope.ID, "Team", &oldParent.ID)
	leaf := mustNode(t, svc, scope.ID, "Member", &moved.ID)

	if moved.Path != "1/5/7" {
		t.Fatalf("pre-move path = %q, want 1/5/7", moved.Path)
	}

	if err := svc.MoveSubtree(ctx, moved.ID, &newParent.ID); err != nil {
		t.Fatalf("move: %v", err)
	}

	got, err := svc.GetNode(ctx, moved.ID)
	if err != nil {
		t.Fatalf("get moved: %v", err)
	}
	if got.Path != "1/6/7" {
		t.Fatalf("moved path = %q, want 1/6/7", got.Path)
	}
	gotLeaf, err := svc.GetNode(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("get leaf: %v", err)
	}
	if gotLeaf.Path != "1/6/7/8" {
		t.Fatalf("leaf path = %q, want 1/6/7/8", gotLeaf.Path)
	}
}

func TestMoveSubtreeRejectsCyclicReparent(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	child := mustNode(t, svc, scope.ID, "East", &root.ID)
	grand := mustNode(t, svc, scope.ID, "Team", &child.ID)

	// under a descendant
	if err := svc.MoveSubtree(ctx, root.ID, &grand.ID); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("move under descendant: err = %v", err)
	}
	// under itself
	if err := svc.MoveSubtree(ctx, child.ID, &child.ID); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("move under self: err = %v", err)
	}

	// nothing changed
	for _, want := range []struct {
		id   int64
		path string
	}{{root.ID, "1"}, {child.ID, "1/2"}, {grand.ID, "1/2/3"}} {
		got, err := svc.GetNode(ctx, want.id)
		if err != nil {
			t.Fatalf("get %d: %v", want.id, err)
		}
		if got.Path != want.path {
			t.Fatalf("node %d path = %q, want %q", want.id, got.Path, want.path)
		}
	}
}

func TestMoveSubtreeToRoot(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	child := mustNode(t, svc, scope.ID, "East", &root.ID)

	if err := svc.MoveSubtree(ctx, child.ID, nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, err := svc.GetNode(ctx, child.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Path != "2" || got.ParentID != nil {
		t.Fatalf("promoted node: path=%q parent=%v", got.Path, got.ParentID)
	}
}

type recordingBinding struct {
	deleted []int64
}

func (b *recordingBinding) GetID(any) int64 { return 0 }
func (b *recordingBinding) GetDisplayName(context.Context, int64) (string, error) {
	return "", nil
}
func (b *recordingBinding) Delete(_ context.Context, id int64) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func TestDeleteSubtreeCascades(t *testing.T) {
	assignments := stores.NewMemoryAssignmentStore()
	binding := &recordingBinding{}
	registry := aauth.NewBindingRegistry()
	registry.Register("department", binding)
	svc := aauth.NewOrganizationService(stores.NewMemoryOrganizationStore(), registry, assignments, nil)
	ctx := context.Background()

	scope := &aauth.OrganizationScope{Name: "Branch"}
	if err := svc.CreateScope(ctx, scope); err != nil {
		t.Fatalf("create scope: %v", err)
	}
	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	mid, err := svc.CreateNode(ctx, &aauth.OrganizationNode{ScopeID: scope.ID, Name: "Dept", ParentID: &root.ID, EntityType: "department", EntityID: 77})
	if err != nil {
		t.Fatalf("create bound node: %v", err)
	}
	leaf := mustNode(t, svc, scope.ID, "Team", &mid.ID)
	keep := mustNode(t, svc, scope.ID, "Other", &root.ID)

	if err := assignments.Assign(ctx, aauth.Assignment{UserID: 1, RoleID: 1, NodeID: &leaf.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if err := svc.DeleteSubtree(ctx, mid.ID); err != nil {
		t.Fatalf("delete subtree: %v", err)
	}

	if _, err := svc.GetNode(ctx, mid.ID); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("mid should be gone, err = %v", err)
	}
	if _, err := svc.GetNode(ctx, leaf.ID); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("leaf should be gone, err = %v", err)
	}
	if _, err := svc.GetNode(ctx, keep.ID); err != nil {
		t.Fatalf("sibling should survive: %v", err)
	}
	if len(binding.deleted) != 1 || binding.deleted[0] != 77 {
		t.Fatalf("bound entity cascade = %v, want [77]", binding.deleted)
	}
	roots, err := assignments.GrantRoots(ctx, 1, 1)
	if err != nil {
		t.Fatalf("grant roots: %v", err)
	}
	if len(roots) != 0 {
		t.Fatalf("grants through deleted nodes should be removed, got %v", roots)
	}
}

func TestAncestorsOf(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	mid := mustNode(t, svc, scope.ID, "East", &root.ID)
	leaf := mustNode(t, svc, scope.ID, "Team", &mid.ID)

	chain, err := svc.AncestorsOf(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(chain) != 3 || chain[0].ID != root.ID || chain[1].ID != mid.ID || chain[2].ID != leaf.ID {
		t.Fatalf("chain = %v", chain)
	}
}

func TestAccessibleFilterUnionOfGrantRoots(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil) // 1
	east := mustNode(t, svc, scope.ID, "East", &root.ID)   // 2
	west := mustNode(t, svc, scope.ID, "West", &root.ID)   // 3
	john := mustNode(t, svc, scope.ID, "John", &east.ID)   // 4
	jane := mustNode(t, svc, scope.ID, "Jane", &east.ID)   // 5
	bob := mustNode(t, svc, scope.ID, "Bob", &west.ID)     // 6

	// grants at East and West: the visible set is the union of both
	// subtrees, roots excluded without includeSelf
	nodes, err := svc.AccessibleDescendants(ctx, []int64{east.ID, west.ID}, false, "")
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	ids := map[int64]bool{}
	for _, n := range nodes {
		ids[n.ID] = true
	}
	if len(ids) != 3 || !ids[john.ID] || !ids[jane.ID] || !ids[bob.ID] {
		t.Fatalf("visible = %v, want {John, Jane, Bob}", ids)
	}

	nodes, err = svc.AccessibleDescendants(ctx, []int64{east.ID, west.ID}, true, "")
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(nodes) != 5 {
		t.Fatalf("includeSelf visible count = %d, want 5", len(nodes))
	}

	// no grants means no access
	nodes, err = svc.AccessibleDescendants(ctx, nil, true, "")
	if err != nil || nodes != nil {
		t.Fatalf("empty roots: nodes=%v err=%v", nodes, err)
	}

	// dangling grant root fails loudly
	if _, err := svc.AccessibleFilter(ctx, []int64{999}, true); !errors.Is(err, aauth.ErrInvalidOrganizationNode) {
		t.Fatalf("dangling root err = %v", err)
	}
}

func TestIsDescendantOrSelf(t *testing.T) {
	svc, _, scope := newOrgService(t)
	ctx := context.Background()

	root := mustNode(t, svc, scope.ID, "Head Office", nil)
	east := mustNode(t, svc, scope.ID, "East", &root.ID)
	west := mustNode(t, svc, scope.ID, "West", &root.ID)
	team := mustNode(t, svc, scope.ID, "Team", &east.ID)

	if ok, _ := svc.IsDescendantOrSelf(ctx, east.ID, team.ID); !ok {
		t.Fatalf("team should be under east")
	}
	if ok, _ := svc.IsDescendantOrSelf(ctx, east.ID, east.ID); !ok {
		t.Fatalf("self should count")
	}
	if ok, _ := svc.IsDescendantOrSelf(ctx, west.ID, team.ID); ok {
		t.Fatalf("team is not under west")
	}
}
