package model

import "testing"

func TestNormalizeStripsDotSlashPrefix(t *testing.T) {
	got := Normalize([]byte("./a/b"))
	if string(got) != "a/b" {
		t.Errorf("Normalize(./a/b) = %q, want a/b", got)
	}
}

func TestNormalizeLeavesOtherPathsUnchanged(t *testing.T) {
	got := Normalize([]byte("a/b"))
	if string(got) != "a/b" {
		t.Errorf("Normalize(a/b) = %q, want a/b", got)
	}
}

func TestJoinWithEmptyPrefixReturnsName(t *testing.T) {
	got := Join(nil, []byte("name"))
	if string(got) != "name" {
		t.Errorf("Join(nil, name) = %q, want name", got)
	}
}

func TestJoinConcatenatesWithSlash(t *testing.T) {
	got := Join([]byte("a"), []byte("b"))
	if string(got) != "a/b" {
		t.Errorf("Join(a, b) = %q, want a/b", got)
	}
}

func TestJoinDirPathEmptyDirPathYieldsContentPath(t *testing.T) {
	got := JoinDirPath(nil, []byte("c/d"))
	if string(got) != "c/d" {
		t.Errorf("JoinDirPath(nil, c/d) = %q, want c/d", got)
	}
}

func TestJoinDirPathDotYieldsContentPath(t *testing.T) {
	got := JoinDirPath([]byte("."), []byte("c/d"))
	if string(got) != "c/d" {
		t.Errorf("JoinDirPath(., c/d) = %q, want c/d", got)
	}
}

func TestJoinDirPathJoinsNonTrivialPrefix(t *testing.T) {
	got := JoinDirPath([]byte("a/b"), []byte("c/d"))
	if string(got) != "a/b/c/d" {
		t.Errorf("JoinDirPath(a/b, c/d) = %q, want a/b/c/d", got)
	}
}
