package livetree

import "strings"

// Path addresses a value in the tree as a sequence of non-empty
// segments. The empty Path is the root.
type Path []string

// ParsePath splits s on '/' and drops empty segments, so leading,
// trailing and repeated slashes are ignored. Segments are otherwise
// taken verbatim.
func ParsePath(s string) Path {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '/' })
	if len(fields) == 0 {
		return nil
	}
	return Path(fields)
}

// String joins the segments with '/'. The root is "".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// IsRoot reports whether p addresses the whole tree.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Child returns a new Path with the given segments appended. Segments
// containing '/' are split.
func (p Path) Child(segments ...string) Path {
	out := make(Path, len(p), len(p)+len(segments))
	copy(out, p)
	for _, s := range segments {
		out = append(out, ParsePath(s)...)
	}
	return out
}

// Parent returns the path one level up; the root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// HasPrefix reports whether q is p or an ancestor of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Equal reports whether p and q name the same location.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}
