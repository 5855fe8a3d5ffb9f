package livetree

// The functions in this file never modify their input tree. Each
// returns a new root that shares every subtree off the written path
// with the old one, so an old root stays valid for readers that still
// hold it.

// Read returns the value at p, or Null if any segment along the way is
// missing or is not a Node.
func Read(tree Value, p Path) Value {
	cur := tree
	for _, seg := range p {
		node, ok := cur.(Node)
		if !ok {
			return Null{}
		}
		cur = node[seg]
	}
	if cur == nil {
		return Null{}
	}
	return cur
}

// Write returns a tree with v at p. Missing intermediate nodes are
// created, and scalars in the way are replaced by nodes. Writing at the
// root returns v itself.
func Write(tree Value, p Path, v Value) Value {
	if v == nil {
		v = Null{}
	}
	if len(p) == 0 {
		return v
	}
	node, _ := tree.(Node)
	out := make(Node, len(node)+1)
	for k, child := range node {
		out[k] = child
	}
	out[p[0]] = Write(node[p[0]], p[1:], v)
	return out
}

// Merge returns a tree where the keys of partial replace those of the
// mapping at p. Keys of the mapping not in partial are kept. An absent
// or scalar value at p is treated as an empty mapping.
func Merge(tree Value, p Path, partial Node) Value {
	existing, _ := Read(tree, p).(Node)
	merged := make(Node, len(existing)+len(partial))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range partial {
		if v == nil {
			v = Null{}
		}
		merged[k] = v
	}
	return Write(tree, p, merged)
}

// Append returns a tree where v is added to the mapping at p under key
// id. An absent or scalar value at p is treated as an empty mapping.
func Append(tree Value, p Path, v Value, id string) Value {
	return Merge(tree, p, Node{id: v})
}

// Delete returns a tree without the value at p. Deleting the root
// yields an empty Node; deleting an absent path returns tree unchanged.
func Delete(tree Value, p Path) Value {
	if len(p) == 0 {
		return Node{}
	}
	parentPath, key := p.Parent(), p[len(p)-1]
	parent, ok := Read(tree, parentPath).(Node)
	if !ok {
		return tree
	}
	if _, present := parent[key]; !present {
		return tree
	}
	out := make(Node, len(parent))
	for k, child := range parent {
		if k != key {
			out[k] = child
		}
	}
	return Write(tree, parentPath, out)
}
