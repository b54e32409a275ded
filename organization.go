package aauth

import (
	"context"
	"fmt"

	"github.com/oarkflow/aauth/logger"
)

// OrganizationService owns the organization tree: scope and node lifecycle,
// materialized-path maintenance, and the hierarchical authorization
// predicate. Subtree rewrites run inside one store transaction so a partial
// path rewrite or partial cascade is never persisted.
type OrganizationService struct {
	store       OrganizationStore
	bindings    *BindingRegistry
	assignments AssignmentStore
	log         logger.Logger
}

// NewOrganizationService wires the service. bindings may be nil when no
// external entities are governed; assignments may be nil when grant cleanup
// on node deletion is handled elsewhere.
func NewOrganizationService(store OrganizationStore, bindings *BindingRegistry, assignments AssignmentStore, log logger.Logger) *OrganizationService {
	if bindings == nil {
		bindings = NewBindingRegistry()
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &OrganizationService{store: store, bindings: bindings, assignments: assignments, log: log}
}

// Bindings exposes the entity binding registry for host registration.
func (s *OrganizationService) Bindings() *BindingRegistry { return s.bindings }

// CreateScope inserts a hierarchy tier definition.
func (s *OrganizationService) CreateScope(ctx context.Context, scope *OrganizationScope) error {
	if scope.Name == "" {
		return fmt.Errorf("%w: empty scope name", ErrInvalidOrganizationScope)
	}
	if scope.Status == "" {
		scope.Status = StatusActive
	}
	return s.store.CreateScope(ctx, scope)
}

// UpdateScope rewrites a scope record.
func (s *OrganizationService) UpdateScope(ctx context.Context, scope *OrganizationScope) error {
	existing, err := s.store.GetScope(ctx, scope.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrInvalidOrganizationScope
	}
	return s.store.UpdateScope(ctx, scope)
}

// DeleteScope removes a scope definition.
func (s *OrganizationService) DeleteScope(ctx context.Context, id int64) error {
	existing, err := s.store.GetScope(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrInvalidOrganizationScope
	}
	return s.store.DeleteScope(ctx, id)
}

// GetScope resolves a scope id.
func (s *OrganizationService) GetScope(ctx context.Context, id int64) (*OrganizationScope, error) {
	scope, err := s.store.GetScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, ErrInvalidOrganizationScope
	}
	return scope, nil
}

// CreateNode inserts a tree node under parentID (nil for a root) and computes
// its materialized path. The id is not known before insertion, so the write
// is two-phase inside one transaction: insert with a placeholder path, then
// patch the path with the assigned id. No node is ever durably visible with
// an incorrect path.
func (s *OrganizationService) CreateNode(ctx context.Context, node *OrganizationNode) (*OrganizationNode, error) {
	scope, err := s.store.GetScope(ctx, node.ScopeID)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, ErrInvalidOrganizationScope
	}
	parentPrefix, err := s.GetPath(ctx, node.ParentID)
	if err != nil {
		return nil, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx OrganizationStore) error {
		node.Path = parentPrefix + "?"
		if err := tx.CreateNode(ctx, node); err != nil {
			return err
		}
		node.Path = JoinPath(parentPrefix, node.ID)
		return tx.UpdateNode(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("organization node created", "node_id", node.ID, "path", node.Path)
	return node, nil
}

// GetPath returns the separator-terminated path prefix for children of
// nodeID: "" for a nil id, otherwise the node's path plus the separator.
func (s *OrganizationService) GetPath(ctx context.Context, nodeID *int64) (string, error) {
	if nodeID == nil {
		return "", nil
	}
	node, err := s.store.GetNode(ctx, *nodeID)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", ErrInvalidOrganizationNode
	}
	return node.Path + PathSeparator, nil
}

// GetNode resolves a node id.
func (s *OrganizationService) GetNode(ctx context.Context, id int64) (*OrganizationNode, error) {
	node, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrInvalidOrganizationNode
	}
	return node, nil
}

// UpdateNode rewrites name/scope/entity fields and recomputes the node's path
// from its current parent. Reparenting goes through MoveSubtree.
func (s *OrganizationService) UpdateNode(ctx context.Context, node *OrganizationNode) (*OrganizationNode, error) {
	existing, err := s.GetNode(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	node.ParentID = existing.ParentID
	prefix, err := s.GetPath(ctx, node.ParentID)
	if err != nil {
		return nil, err
	}
	node.Path = JoinPath(prefix, node.ID)
	if err := s.store.UpdateNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// MoveSubtree reparents nodeID under newParentID (nil moves it to the root)
// and recomputes the materialized path of the node and of every descendant,
// depth-first. All path rewrites happen in one transaction: either the whole
// subtree moves or nothing does.
func (s *OrganizationService) MoveSubtree(ctx context.Context, nodeID int64, newParentID *int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx OrganizationStore) error {
		node, err := tx.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		if node == nil {
			return ErrInvalidOrganizationNode
		}
		prefix := ""
		if newParentID != nil {
			parent, err := tx.GetNode(ctx, *newParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return ErrInvalidOrganizationNode
			}
			// reparenting under the node's own subtree would turn the parent
			// chain into a cycle and the rewrite below would never terminate
			if DescendantOrSelfPath(node.Path, parent.Path) {
				return fmt.Errorf("%w: node %d cannot move under its own subtree", ErrInvalidOrganizationNode, node.ID)
			}
			prefix = parent.Path + PathSeparator
		}
		node.ParentID = newParentID
		node.Path = JoinPath(prefix, node.ID)
		if err := tx.UpdateNode(ctx, node); err != nil {
			return err
		}
		return s.rewriteChildPaths(ctx, tx, node)
	})
	if err != nil {
		return err
	}
	s.log.Info("organization subtree moved", "node_id", nodeID)
	return nil
}

// rewriteChildPaths recomputes the path of every direct child from the
// (already rewritten) parent, recursing over the whole subtree.
func (s *OrganizationService) rewriteChildPaths(ctx context.Context, tx OrganizationStore, parent *OrganizationNode) error {
	children, err := tx.ChildrenOf(ctx, parent.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		child.Path = JoinPath(parent.Path+PathSeparator, child.ID)
		if err := tx.UpdateNode(ctx, child); err != nil {
			return err
		}
		if err := s.rewriteChildPaths(ctx, tx, child); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSubtree removes nodeID and all of its descendants depth-first, inside
// one transaction. Nodes bound to an external entity cascade to the entity's
// registered binding; grant rows pointing at deleted nodes are removed after
// the subtree commit.
func (s *OrganizationService) DeleteSubtree(ctx context.Context, nodeID int64) error {
	var deleted []int64
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx OrganizationStore) error {
		node, err := tx.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		if node == nil {
			return ErrInvalidOrganizationNode
		}
		return s.deleteNodeRecursive(ctx, tx, node, &deleted)
	})
	if err != nil {
		return err
	}
	if s.assignments != nil {
		for _, id := range deleted {
			if err := s.assignments.UnassignNode(ctx, id); err != nil {
				return err
			}
		}
	}
	s.log.Info("organization subtree deleted", "node_id", nodeID, "nodes", len(deleted))
	return nil
}

func (s *OrganizationService) deleteNodeRecursive(ctx context.Context, tx OrganizationStore, node *OrganizationNode, deleted *[]int64) error {
	children, err := tx.ChildrenOf(ctx, node.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.deleteNodeRecursive(ctx, tx, child, deleted); err != nil {
			return err
		}
	}
	if node.EntityType != "" && s.bindings.Has(node.EntityType) {
		binding, err := s.bindings.Lookup(node.EntityType)
		if err != nil {
			return err
		}
		if err := binding.Delete(ctx, node.EntityID); err != nil {
			return fmt.Errorf("delete bound entity %s/%d: %w", node.EntityType, node.EntityID, err)
		}
	}
	if err := tx.DeleteNode(ctx, node.ID); err != nil {
		return err
	}
	*deleted = append(*deleted, node.ID)
	return nil
}

// AncestorsOf returns the nodes on the path from the root down to and
// including nodeID, derived from the materialized path without recursive
// traversal.
func (s *OrganizationService) AncestorsOf(ctx context.Context, nodeID int64) ([]*OrganizationNode, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	ids, err := SplitPath(node.Path)
	if err != nil {
		return nil, err
	}
	out := make([]*OrganizationNode, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// IsDescendantOrSelf reports whether candidateID lies in the subtree rooted
// at ancestorID, the root included.
func (s *OrganizationService) IsDescendantOrSelf(ctx context.Context, ancestorID, candidateID int64) (bool, error) {
	ancestor, err := s.GetNode(ctx, ancestorID)
	if err != nil {
		return false, err
	}
	candidate, err := s.GetNode(ctx, candidateID)
	if err != nil {
		return false, err
	}
	return DescendantOrSelfPath(ancestor.Path, candidate.Path), nil
}

// AccessibleFilter builds the hierarchical authorization predicate: the union
// of the subtrees rooted at rootIDs, each grant-root OR-attached. An empty
// root set yields a filter matching nothing; a root id that does not resolve
// fails rather than silently shrinking the grant.
func (s *OrganizationService) AccessibleFilter(ctx context.Context, rootIDs []int64, includeSelf bool) (*Filter, error) {
	filter := &Filter{Join: ConnOr}
	for _, rootID := range rootIDs {
		root, err := s.store.GetNode(ctx, rootID)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, ErrInvalidOrganizationNode
		}
		filter.Add(Condition{Column: "path", Op: OpLike, Value: root.Path + PathSeparator + "%"})
		if includeSelf {
			filter.Add(Condition{Column: "path", Op: OpEq, Value: root.Path})
		}
	}
	return filter, nil
}

// AccessibleDescendants returns every node visible through the given
// grant-roots: the union across roots of each root's subtree, the roots
// themselves included only when includeSelf is set, optionally restricted to
// nodes bound to one entity type.
func (s *OrganizationService) AccessibleDescendants(ctx context.Context, rootIDs []int64, includeSelf bool, entityType string) ([]*OrganizationNode, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	filter, err := s.AccessibleFilter(ctx, rootIDs, includeSelf)
	if err != nil {
		return nil, err
	}
	return s.store.SelectNodes(ctx, filter, entityType)
}

// NodeForEntity resolves the node wrapping an external entity.
func (s *OrganizationService) NodeForEntity(ctx context.Context, entityType string, entityID int64) (*OrganizationNode, error) {
	node, err := s.store.NodeByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrInvalidOrganizationNode
	}
	return node, nil
}
