package livetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Parallel()
	require.Nil(t, ParsePath(""))
	require.Nil(t, ParsePath("/"))
	require.Nil(t, ParsePath("///"))
	require.Equal(t, Path{"a", "b"}, ParsePath("a/b"))
	require.Equal(t, Path{"a", "b"}, ParsePath("/a//b/"))
	require.Equal(t, Path{"sessions", "s 1", "status"}, ParsePath("sessions/s 1/status"))
	require.Equal(t, "a/b", ParsePath("/a//b/").String())
	require.True(t, ParsePath("/").IsRoot())
}

func TestPathChildParent(t *testing.T) {
	t.Parallel()
	p := ParsePath("a")
	b := p.Child("b")
	c := p.Child("c/d")
	require.Equal(t, Path{"a", "b"}, b)
	require.Equal(t, Path{"a", "c", "d"}, c)
	require.Equal(t, Path{"a"}, p, "Child must not modify its receiver")
	require.Equal(t, Path{"a"}, c.Parent().Parent())
	require.True(t, Path(nil).Parent().IsRoot())

	// appending to a parent must not clobber the child it came from
	_ = append(b.Parent(), "x")
	require.Equal(t, Path{"a", "b"}, b)
}

func TestPathHasPrefix(t *testing.T) {
	t.Parallel()
	p := ParsePath("a/b/c")
	assert.True(t, p.HasPrefix(nil))
	assert.True(t, p.HasPrefix(ParsePath("a")))
	assert.True(t, p.HasPrefix(ParsePath("a/b/c")))
	assert.False(t, p.HasPrefix(ParsePath("a/b/c/d")))
	assert.False(t, p.HasPrefix(ParsePath("a/x")))
	assert.True(t, p.Equal(Path{"a", "b", "c"}))
	assert.False(t, p.Equal(ParsePath("a/b")))
}

func TestRef(t *testing.T) {
	t.Parallel()
	r := NewRef("/sessions/s1/")
	require.Equal(t, "s1", r.Key())
	require.Equal(t, "/sessions/s1", r.String())
	require.Equal(t, "/sessions/s1/messages", r.Child("messages").String())
	require.Equal(t, "/sessions", r.Parent().String())
	require.Equal(t, "", NewRef("").Key())
	require.Equal(t, "/", NewRef("").String())

	segments := r.Path()
	segments[0] = "changed"
	require.Equal(t, "/sessions/s1", r.String())
}
