package livetree

// Ref is a handle on a path in a Database. Refs are plain values; making
// one touches no storage.
type Ref struct {
	path Path
}

// NewRef returns a Ref for the slash-separated path.
func NewRef(path string) Ref {
	return Ref{ParsePath(path)}
}

// Path returns the segments the Ref addresses.
func (r Ref) Path() Path {
	return r.path.Child()
}

// Key returns the last segment, or "" for the root.
func (r Ref) Key() string {
	if len(r.path) == 0 {
		return ""
	}
	return r.path[len(r.path)-1]
}

// Child returns a Ref below r.
func (r Ref) Child(path string) Ref {
	return Ref{r.path.Child(path)}
}

// Parent returns the Ref one level up; the root is its own parent.
func (r Ref) Parent() Ref {
	return Ref{r.path.Parent()}
}

func (r Ref) String() string {
	return "/" + r.path.String()
}
