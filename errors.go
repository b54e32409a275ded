package aauth

import (
	"errors"
	"fmt"
)

// Identity errors, raised while resolving a session. They indicate a broken
// request or broken data, not a denied permission.
var (
	ErrAuthenticationMissing = errors.New("aauth: no authenticated user")
	ErrMissingRole           = errors.New("aauth: no active role")
	ErrUserHasNoAssignedRole = errors.New("aauth: role is not assigned to user")
)

// Reference errors, raised where a dangling id is first dereferenced.
var (
	ErrInvalidOrganizationNode  = errors.New("aauth: invalid organization node")
	ErrInvalidOrganizationScope = errors.New("aauth: invalid organization scope")
	ErrInvalidRole              = errors.New("aauth: invalid role")
	ErrInvalidUser              = errors.New("aauth: invalid user")
)

// ErrScopeMismatch is raised when an organization-scoped role is attached
// through a node that belongs to a different organization scope.
var ErrScopeMismatch = errors.New("aauth: organization scope mismatch")

// ValidationError reports a malformed ABAC rule tree. It is raised when a
// rule is created or updated, never during query compilation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "aauth: invalid abac rule: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthorizationError is returned by Session.PassOrAbort when a permission
// check fails. The transport layer owns the mapping to a client-visible
// response; the core only carries the permission and message.
type AuthorizationError struct {
	Permission string
	Message    string
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("aauth: permission %q denied: %s", e.Permission, e.Message)
	}
	return fmt.Sprintf("aauth: permission %q denied", e.Permission)
}
