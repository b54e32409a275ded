package aauth

import (
	"strconv"
	"strings"
)

// PathSeparator joins ancestor ids inside OrganizationNode.Path. Paths are
// un-terminated slash-joined id sequences: a root node's path is its own id
// ("1"), a child's path is the parent path plus its id ("1/5").
const PathSeparator = "/"

// JoinPath appends id to a parent path prefix. The prefix is either empty
// (root) or already separator-terminated, as returned by
// OrganizationService.GetPath.
func JoinPath(parentPrefix string, id int64) string {
	return parentPrefix + strconv.FormatInt(id, 10)
}

// SplitPath returns the ancestor ids encoded in path, root first, the node
// itself last.
func SplitPath(path string) ([]int64, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, PathSeparator)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PathDepth is the number of separators in the path: 0 for a root node.
func PathDepth(path string) int {
	return strings.Count(path, PathSeparator)
}

// DescendantOrSelfPath reports whether candidate lies in the subtree rooted
// at ancestor, the root itself included. Pure string predicate; no store
// access and no recursive traversal.
func DescendantOrSelfPath(ancestorPath, candidatePath string) bool {
	return candidatePath == ancestorPath ||
		strings.HasPrefix(candidatePath, ancestorPath+PathSeparator)
}
