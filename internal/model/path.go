package model

import "bytes"

// Normalize implements invariant I5: a path stored in a path-carrying
// relation never starts with "./", and always uses "/" as separator.
// Grounded on the original's postgresql/provenance.py `normalize`.
func Normalize(p []byte) []byte {
	if bytes.HasPrefix(p, []byte("./")) {
		return p[2:]
	}
	return p
}

// Join concatenates a prefix and a name with "/", matching the path.Join
// convention the isochrone builder uses while it descends the tree, except
// it operates on raw bytes since archive entry names are not guaranteed to
// be valid UTF-8.
func Join(prefix, name []byte) []byte {
	if len(prefix) == 0 {
		return name
	}
	out := make([]byte, 0, len(prefix)+1+len(name))
	out = append(out, prefix...)
	out = append(out, '/')
	out = append(out, name...)
	return out
}

// JoinDirPath implements the query-time path composition rule of spec.md
// §4.1: an empty or "." DIR_IN_REV path yields the CNT_IN_DIR path
// unchanged; otherwise the two are joined with "/".
func JoinDirPath(dirPath, contentPath []byte) []byte {
	if len(dirPath) == 0 || bytes.Equal(dirPath, []byte(".")) {
		return contentPath
	}
	return Join(dirPath, contentPath)
}
