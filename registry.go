package aauth

import (
	"context"
	"fmt"
	"sync"
)

// EntityBinding is the collaborator behind a hierarchy-governed external
// entity type. The Hierarchy Store calls Delete when it removes a node bound
// to an entity; GetDisplayName names freshly wrapped entities.
type EntityBinding interface {
	GetID(entity any) int64
	GetDisplayName(ctx context.Context, entityID int64) (string, error)
	Delete(ctx context.Context, entityID int64) error
}

// BindingRegistry maps an entity type tag to its binding collaborator. The
// registry entry is resolved once per type; there is no per-call dispatch by
// string beyond the map lookup.
type BindingRegistry struct {
	mu       sync.RWMutex
	bindings map[string]EntityBinding
}

func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{bindings: make(map[string]EntityBinding)}
}

// Register installs the binding for an entity type tag, replacing any
// previous one.
func (r *BindingRegistry) Register(entityType string, b EntityBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[entityType] = b
}

// Lookup returns the binding registered for the tag.
func (r *BindingRegistry) Lookup(entityType string) (EntityBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[entityType]
	if !ok {
		return nil, fmt.Errorf("aauth: no binding registered for entity type %q", entityType)
	}
	return b, nil
}

// Has reports whether a binding is registered for the tag.
func (r *BindingRegistry) Has(entityType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[entityType]
	return ok
}
