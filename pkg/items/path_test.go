package items

import (
	"reflect"
	"strings"
	"testing"
)

func TestPathSegmentRoundTrip(t *testing.T) {
	id := "1c6cff00-82b1-4a3f-9c71-0d5a3e9b6f42"
	seg := PathSegment(id)

	if strings.Contains(seg, PathSeparator) {
		t.Errorf("Segment %q contains the path separator", seg)
	}
	if got := SegmentID(seg); got != id {
		t.Errorf("SegmentID(PathSegment(id)) = %q, want %q", got, id)
	}
}

func TestChildPath(t *testing.T) {
	tests := []struct {
		name       string
		parentPath string
		childID    string
		want       string
	}{
		{"root", "", "aaa-bbb", "aaa_bbb"},
		{"child of root", "aaa_bbb", "ccc-ddd", "aaa_bbb.ccc_ddd"},
		{"grandchild", "aaa_bbb.ccc_ddd", "eee", "aaa_bbb.ccc_ddd.eee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChildPath(tt.parentPath, tt.childID); got != tt.want {
				t.Errorf("ChildPath(%q, %q) = %q, want %q", tt.parentPath, tt.childID, got, tt.want)
			}
		})
	}
}

func TestParentPath(t *testing.T) {
	if got := ParentPath("a.b.c"); got != "a.b" {
		t.Errorf("ParentPath(a.b.c) = %q, want a.b", got)
	}
	if got := ParentPath("a"); got != "" {
		t.Errorf("ParentPath of a root = %q, want empty", got)
	}
}

func TestIsAncestorOrSelf(t *testing.T) {
	tests := []struct {
		candidate string
		target    string
		want      bool
	}{
		{"a", "a", true},
		{"a", "a.b", true},
		{"a", "a.b.c", true},
		{"a.b", "a", false},
		{"a", "ab", false}, // prefix of a sibling segment, not an ancestor
		{"a.b", "a.c", false},
	}

	for _, tt := range tests {
		if got := IsAncestorOrSelf(tt.candidate, tt.target); got != tt.want {
			t.Errorf("IsAncestorOrSelf(%q, %q) = %v, want %v", tt.candidate, tt.target, got, tt.want)
		}
	}
}

func TestIsDescendant(t *testing.T) {
	if !IsDescendant("a", "a.b") {
		t.Error("a.b should be a descendant of a")
	}
	if IsDescendant("a", "a") {
		t.Error("An item is not its own descendant")
	}
	if IsDescendant("a", "ab.c") {
		t.Error("ab.c is not a descendant of a")
	}
}

func TestAncestorPaths(t *testing.T) {
	got := AncestorPaths("a.b.c")
	want := []string{"a", "a.b", "a.b.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AncestorPaths(a.b.c) = %v, want %v", got, want)
	}

	if got := AncestorPaths(""); got != nil {
		t.Errorf("AncestorPaths of empty path = %v, want nil", got)
	}
}

func TestAncestorIDs(t *testing.T) {
	root := PathSegment("aaa-1")
	child := PathSegment("bbb-2")
	got := AncestorIDs(root + PathSeparator + child)
	want := []string{"aaa-1", "bbb-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AncestorIDs = %v, want %v", got, want)
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a.b", 2},
		{"a.b.c", 3},
	}
	for _, tt := range tests {
		if got := Depth(tt.path); got != tt.want {
			t.Errorf("Depth(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestNewItem(t *testing.T) {
	root := NewItem("root", "acct-1", nil)
	if root.Path != PathSegment(root.ID) {
		t.Errorf("Root path = %q, want %q", root.Path, PathSegment(root.ID))
	}
	if !root.IsRoot() {
		t.Error("Item without a parent should be a root")
	}

	child := NewItem("child", "acct-1", root)
	if child.ParentPath() != root.Path {
		t.Errorf("Child parent path = %q, want %q", child.ParentPath(), root.Path)
	}
	if !IsDescendant(root.Path, child.Path) {
		t.Errorf("Child path %q should descend from %q", child.Path, root.Path)
	}
}

func TestItemValidate(t *testing.T) {
	item := NewItem("", "acct-1", nil)
	if err := item.Validate(); err != ErrInvalidItemName {
		t.Errorf("Empty name: got %v, want ErrInvalidItemName", err)
	}

	item.Name = strings.Repeat("x", MaxNameLength+1)
	if err := item.Validate(); err != ErrInvalidItemName {
		t.Errorf("Oversized name: got %v, want ErrInvalidItemName", err)
	}

	item.Name = strings.Repeat("x", MaxNameLength)
	if err := item.Validate(); err != nil {
		t.Errorf("Max-length name should be valid, got %v", err)
	}
}

func TestSubtreePattern(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"abc", "abc.%"},
		{"a_b", `a\_b.%`},
		{"a_b.c_d", `a\_b.c\_d.%`},
		{"100%", `100\%.%`},
	}
	for _, tt := range tests {
		if got := SubtreePattern(tt.path); got != tt.want {
			t.Errorf("SubtreePattern(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
