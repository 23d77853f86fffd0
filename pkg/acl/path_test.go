package acl

import (
	"reflect"
	"testing"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"foo", "foo"},
		{"/foo/", "foo"},
		{"foo//bar", "foo/bar"},
		{"./foo/./bar", "foo/bar"},
		{"foo/../bar", "bar"},
		{"../..", ""},
		{"a\\b", "a/b"},
	}
	for _, tt := range tests {
		if got := CleanPath(tt.in); got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"foo", ""},
		{"foo/bar", "foo"},
		{"a/b/c.txt", "a/b"},
		{"/a/b/", "a"},
	}
	for _, tt := range tests {
		if got := ParentPath(tt.in); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"foo", "foo"},
		{"a/b/c.txt", "c.txt"},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"", "file", "file"},
		{"dir", "file", "dir/file"},
		{"/dir/", "/file/", "dir/file"},
		{"dir", "", "dir"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestAncestors(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{""}},
		{"file", []string{""}},
		{"a/b", []string{"", "a"}},
		{"a/b/c.txt", []string{"", "a", "a/b"}},
	}
	for _, tt := range tests {
		if got := Ancestors(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Ancestors(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSelfAndAncestors(t *testing.T) {
	got := SelfAndAncestors("a/b/c")
	want := []string{"", "a", "a/b", "a/b/c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SelfAndAncestors = %v, want %v", got, want)
	}

	if got := SelfAndAncestors(""); !reflect.DeepEqual(got, []string{""}) {
		t.Errorf("SelfAndAncestors(root) = %v, want [\"\"]", got)
	}
}

func TestIsDescendant(t *testing.T) {
	tests := []struct {
		parent, child string
		want          bool
	}{
		{"", "a", true},
		{"", "", false},
		{"a", "a", false},
		{"a", "a/b", true},
		{"a", "ab", false},
		{"a/b", "a/b/c/d", true},
		{"a/b", "a", false},
	}
	for _, tt := range tests {
		if got := IsDescendant(tt.parent, tt.child); got != tt.want {
			t.Errorf("IsDescendant(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
