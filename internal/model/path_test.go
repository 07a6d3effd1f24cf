package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldPath_CanonicalString(t *testing.T) {
	t.Run("simple segments are unquoted", func(t *testing.T) {
		p := NewFieldPath("a", "b")
		assert.Equal(t, "a.b", p.CanonicalString())
	})

	t.Run("segments needing escaping are backtick-quoted", func(t *testing.T) {
		p := NewFieldPath("a.b", "c")
		assert.Equal(t, "`a.b`.c", p.CanonicalString())
	})

	t.Run("key field path", func(t *testing.T) {
		assert.True(t, KeyFieldPath().IsKeyField())
		assert.False(t, NewFieldPath("name").IsKeyField())
	})
}

func TestFieldPath_PopFirst(t *testing.T) {
	p := NewFieldPath("a", "b", "c")

	first := p.FirstSegment()
	assert.Equal(t, "a", first)

	rest := p.PopFirst()
	assert.Equal(t, 2, rest.Len())
	assert.Equal(t, "b", rest.FirstSegment())
}

func TestResourcePath_DocumentAndCollection(t *testing.T) {
	doc := NewResourcePath("users", "alice")
	assert.True(t, doc.IsDocument())
	assert.False(t, doc.IsCollection())

	coll := NewResourcePath("users")
	assert.False(t, coll.IsDocument())
	assert.True(t, coll.IsCollection())
}

func TestResourcePath_Compare(t *testing.T) {
	t.Run("shorter prefix sorts before longer extension", func(t *testing.T) {
		a := NewResourcePath("users")
		b := NewResourcePath("users", "alice")
		assert.Negative(t, a.Compare(b))
	})

	t.Run("lexicographic segment comparison", func(t *testing.T) {
		a := NewResourcePath("users", "alice")
		b := NewResourcePath("users", "bob")
		assert.Negative(t, a.Compare(b))
	})
}

func TestResourcePath_IsPrefixOf(t *testing.T) {
	root := NewResourcePath("users")
	doc := NewResourcePath("users", "alice")

	assert.True(t, root.IsPrefixOf(doc))
	assert.True(t, doc.IsPrefixOf(doc))
	assert.False(t, doc.IsPrefixOf(root))
}

func TestDocumentKey(t *testing.T) {
	t.Run("rejects odd-length paths", func(t *testing.T) {
		_, err := NewDocumentKey(NewResourcePath("users"))
		require.Error(t, err)
	})

	t.Run("round-trips through string form", func(t *testing.T) {
		key := MustDocumentKey("users", "alice", "posts", "1")
		parsed, err := DocumentKeyFromString(key.String())
		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})

	t.Run("collection group is second-to-last segment", func(t *testing.T) {
		key := MustDocumentKey("users", "alice", "posts", "1")
		assert.Equal(t, "posts", key.CollectionGroup())
	})

	t.Run("collection path drops the document segment", func(t *testing.T) {
		key := MustDocumentKey("users", "alice")
		assert.Equal(t, "users", key.CollectionPath().String())
	})
}

func TestDatabaseRootedString(t *testing.T) {
	p := NewResourcePath("users", "alice")
	got := DatabaseRootedString("proj", "(default)", p)
	assert.Equal(t, "projects/proj/databases/(default)/documents/users/alice", got)
}
