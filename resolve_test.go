package livetree

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var defaultGopterParameters = gopter.DefaultTestParameters()

// testOp is one random mutation used to grow random trees.
type testOp struct {
	Kind  int
	Path  Path
	Value Number
}

func (o testOp) String() string {
	return fmt.Sprintf("%d(%s=%v)", o.Kind, o.Path, o.Value)
}

// genPath generates paths of up to four segments drawn from a small
// alphabet, so that generated paths often share ancestors.
func genPath() gopter.Gen {
	return gen.SliceOfN(4, gen.IntRange(0, 3)).Map(func(xs []int) Path {
		var p Path
		for _, x := range xs {
			if x == 0 {
				break
			}
			p = append(p, string(rune('a'+x-1)))
		}
		return p
	})
}

func genNonRootPath() gopter.Gen {
	return genPath().SuchThat(func(p Path) bool { return len(p) > 0 })
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		genNonRootPath(),
		gen.IntRange(0, 9),
	).Map(func(vs []interface{}) testOp {
		return testOp{
			Kind:  vs[0].(int),
			Path:  vs[1].(Path),
			Value: Number(vs[2].(int)),
		}
	})
}

func genOps() gopter.Gen {
	return gen.SliceOf(genOp())
}

func buildTree(ops []testOp) Node {
	var tree Value = Node{}
	for _, op := range ops {
		switch op.Kind {
		case 0:
			tree = Write(tree, op.Path, op.Value)
		case 1:
			tree = Delete(tree, op.Path)
		case 2:
			tree = Merge(tree, op.Path.Parent(), Node{op.Path[len(op.Path)-1]: op.Value})
		}
	}
	return tree.(Node)
}

func deepCopy(v Value) Value {
	return MustFromGo(ToGo(v))
}

// related reports whether one path is an ancestor of, or the same as,
// the other.
func related(p, q Path) bool {
	return p.HasPrefix(q) || q.HasPrefix(p)
}

func TestRead(t *testing.T) {
	t.Parallel()
	tree := Node{"a": Node{"b": String("x")}, "s": Number(1)}
	require.Equal(t, String("x"), Read(tree, ParsePath("a/b")))
	require.Equal(t, Node{"b": String("x")}, Read(tree, ParsePath("a")))
	require.Equal(t, tree, Read(tree, nil))
	require.Equal(t, Null{}, Read(tree, ParsePath("a/missing")))
	require.Equal(t, Null{}, Read(tree, ParsePath("s/through/scalar")))
	require.Equal(t, Null{}, Read(nil, ParsePath("a")))
}

func TestWrite(t *testing.T) {
	t.Parallel()
	tree := Node{"a": Node{"b": String("x")}, "keep": Node{"k": Bool(true)}}
	out := Write(tree, ParsePath("a/c/d"), Number(2)).(Node)
	require.Equal(t, Node{
		"a":    Node{"b": String("x"), "c": Node{"d": Number(2)}},
		"keep": Node{"k": Bool(true)},
	}, out)
	require.True(t, sameNode(tree["keep"].(Node), out["keep"].(Node)), "untouched subtree should be shared")
	require.Equal(t, Node{"b": String("x")}, tree["a"], "input modified")

	out = Write(Node{"a": String("scalar")}, ParsePath("a/b"), Bool(true)).(Node)
	require.Equal(t, Node{"a": Node{"b": Bool(true)}}, out)

	require.Equal(t, Null{}, Write(tree, ParsePath("a/b"), nil).(Node)["a"].(Node)["b"])
	require.Equal(t, String("root"), Write(tree, nil, String("root")))
}

func TestMerge(t *testing.T) {
	t.Parallel()
	tree := Node{"s": Node{"x": Number(1), "y": Number(2)}}
	out := Merge(tree, ParsePath("s"), Node{"y": Number(3), "z": Number(4)})
	require.Equal(t, Node{"s": Node{"x": Number(1), "y": Number(3), "z": Number(4)}}, out)

	out = Merge(Node{"s": String("scalar")}, ParsePath("s"), Node{"a": Bool(true)})
	require.Equal(t, Node{"s": Node{"a": Bool(true)}}, out)

	out = Merge(Node{}, nil, Node{"top": Number(1)})
	require.Equal(t, Node{"top": Number(1)}, out)
}

func TestAppend(t *testing.T) {
	t.Parallel()
	tree := Append(Node{}, ParsePath("msgs"), String("hi"), "id1")
	tree = Append(tree, ParsePath("msgs"), String("there"), "id2")
	require.Equal(t, Node{"msgs": Node{"id1": String("hi"), "id2": String("there")}}, tree)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	tree := Node{"a": Node{"b": Number(1), "c": Number(2)}}
	out := Delete(tree, ParsePath("a/b"))
	require.Equal(t, Node{"a": Node{"c": Number(2)}}, out)
	require.Equal(t, Node{"a": Node{"b": Number(1), "c": Number(2)}}, tree, "input modified")

	require.Equal(t, Node{}, Delete(tree, nil))

	same := Delete(tree, ParsePath("a/missing"))
	require.True(t, sameNode(tree, same.(Node)), "deleting an absent path should return the input")
	same = Delete(tree, ParsePath("a/b/under/scalar"))
	require.True(t, sameNode(tree, same.(Node)))
}

func TestWriteProperties(t *testing.T) {
	t.Parallel()
	properties := gopter.NewProperties(defaultGopterParameters)

	properties.Property("read returns what was written", prop.ForAll(
		func(ops []testOp, p Path, n int) bool {
			tree := buildTree(ops)
			return Equal(Number(n), Read(Write(tree, p, Number(n)), p))
		},
		genOps(), genPath(), gen.IntRange(0, 9)))

	properties.Property("write leaves unrelated paths and its input alone", prop.ForAll(
		func(ops []testOp, p, q Path) bool {
			tree := buildTree(ops)
			before := deepCopy(tree)
			out := Write(tree, p, String("new"))
			if !Equal(before, tree) {
				return false
			}
			return related(p, q) || Equal(Read(tree, q), Read(out, q))
		},
		genOps(), genNonRootPath(), genPath()))

	properties.Property("merge writes the partial keys and keeps the rest", prop.ForAll(
		func(ops []testOp, p Path, k1, k2 int) bool {
			tree := buildTree(ops)
			partial := Node{fmt.Sprint(k1): Number(k1), fmt.Sprint(k2): Number(k2)}
			out := Merge(tree, p, partial)
			merged, ok := Read(out, p).(Node)
			if !ok {
				return false
			}
			for k, v := range partial {
				if !Equal(v, merged[k]) {
					return false
				}
			}
			if existing, ok := Read(tree, p).(Node); ok {
				for k, v := range existing {
					if _, replaced := partial[k]; !replaced && !Equal(v, merged[k]) {
						return false
					}
				}
			}
			return true
		},
		genOps(), genPath(), gen.IntRange(0, 9), gen.IntRange(0, 9)))

	properties.Property("delete removes only its path", prop.ForAll(
		func(ops []testOp, p, q Path) bool {
			tree := buildTree(ops)
			before := deepCopy(tree)
			out := Delete(tree, p)
			if !Equal(before, tree) || !IsNull(Read(out, p)) {
				return false
			}
			return related(p, q) || Equal(Read(tree, q), Read(out, q))
		},
		genOps(), genNonRootPath(), genPath()))

	properties.TestingRun(t)
}
