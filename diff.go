package livetree

import (
	"fmt"
	"sort"
)

// DiffFunc receives one difference between two trees. removed is nil
// when p was absent in the old tree; added is nil when it is absent in
// the new one. Returning keepGoing=false stops the iteration.
type DiffFunc func(p Path, removed, added Value) (keepGoing bool, err error)

// Diff invokes f for every path whose value differs between oldTree and
// newTree. Differences are reported at the shallowest path where a
// scalar, or a node-versus-scalar change, occurs; nodes present on both
// sides are descended into. Subtrees shared by both trees are skipped
// without being visited, so diffing two versions of a store is
// proportional to what changed.
func Diff(oldTree, newTree Value, f DiffFunc) error {
	_, err := diff(nil, oldTree, newTree, f)
	return err
}

func diff(p Path, oldValue, newValue Value, f DiffFunc) (bool, error) {
	oldNode, oldIsNode := oldValue.(Node)
	newNode, newIsNode := newValue.(Node)
	if !oldIsNode || !newIsNode {
		if Equal(oldValue, newValue) {
			return true, nil
		}
		keepGoing, err := f(p, present(oldValue), present(newValue))
		if err != nil {
			return false, fmt.Errorf("diff %s: %w", p, err)
		}
		return keepGoing, nil
	}
	if sameNode(oldNode, newNode) {
		return true, nil
	}
	keys := make([]string, 0, len(oldNode)+len(newNode))
	for k := range oldNode {
		keys = append(keys, k)
	}
	for k := range newNode {
		if _, ok := oldNode[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := append(p[:len(p):len(p)], k)
		keepGoing, err := diff(child, oldNode[k], newNode[k], f)
		if err != nil || !keepGoing {
			return keepGoing, err
		}
	}
	return true, nil
}

func present(v Value) Value {
	if IsNull(v) {
		return nil
	}
	return v
}
