package items

import "strings"

// PathSeparator joins path segments. It is reserved and never appears inside
// a segment.
const PathSeparator = "."

// PathSegment converts an item id into its path segment form. UUID hyphens
// are replaced with underscores so the separator stays unambiguous and the
// value remains a valid ltree label.
func PathSegment(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}

// SegmentID converts a path segment back into the item id it encodes.
func SegmentID(segment string) string {
	return strings.ReplaceAll(segment, "_", "-")
}

// ChildPath returns the path of a child of parentPath with the given id.
// An empty parentPath produces a root path.
func ChildPath(parentPath, childID string) string {
	if parentPath == "" {
		return PathSegment(childID)
	}
	return parentPath + PathSeparator + PathSegment(childID)
}

// ParentPath returns the path with the last segment removed, or "" for roots.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, PathSeparator)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// IsAncestorOrSelf reports whether candidate is an ancestor of target or
// target itself, purely as a path operation.
func IsAncestorOrSelf(candidate, target string) bool {
	if candidate == target {
		return true
	}
	return strings.HasPrefix(target, candidate+PathSeparator)
}

// IsDescendant reports whether target is a strict descendant of candidate.
func IsDescendant(candidate, target string) bool {
	return strings.HasPrefix(target, candidate+PathSeparator)
}

// AncestorIDs returns the ids encoded in path, root first, including the
// item itself as the last element.
func AncestorIDs(path string) []string {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, PathSeparator)
	ids := make([]string, len(segments))
	for i, seg := range segments {
		ids[i] = SegmentID(seg)
	}
	return ids
}

// AncestorPaths returns every ancestor-or-self path of path, root first.
// For "a.b.c" it returns ["a", "a.b", "a.b.c"].
func AncestorPaths(path string) []string {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, PathSeparator)
	paths := make([]string, len(segments))
	for i := range segments {
		paths[i] = strings.Join(segments[:i+1], PathSeparator)
	}
	return paths
}

// Depth returns the number of segments in path. Roots have depth 1.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, PathSeparator) + 1
}

// likeReplacer escapes the characters LIKE treats specially. Segments are
// full of underscores (see PathSegment), so an unescaped path prefix would
// match any character at those positions.
var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SubtreePattern returns a LIKE pattern matching every path strictly below
// path. Queries using it must declare ESCAPE '\'.
func SubtreePattern(path string) string {
	return likeReplacer.Replace(path) + PathSeparator + "%"
}

// grandchildPattern matches paths two or more levels below path.
func grandchildPattern(path string) string {
	return likeReplacer.Replace(path) + PathSeparator + "%" + PathSeparator + "%"
}
