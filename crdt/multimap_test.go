package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiMapSortedInsert(t *testing.T) {
	m := NewMultiMap[int](func(a, b int) bool { return a < b })

	m.Insert("k", 3)
	m.Insert("k", 1)
	m.Insert("k", 2)

	assert.Equal(t, []int{1, 2, 3}, m.Get("k"))
}

func TestMultiMapStableOnTies(t *testing.T) {
	type item struct {
		rank int
		tag  string
	}
	m := NewMultiMap[item](func(a, b item) bool { return a.rank < b.rank })

	m.Insert("k", item{1, "first"})
	m.Insert("k", item{1, "second"})
	m.Insert("k", item{0, "head"})
	m.Insert("k", item{1, "third"})

	seq := m.Get("k")
	assert.Equal(t, []string{"head", "first", "second", "third"}, []string{seq[0].tag, seq[1].tag, seq[2].tag, seq[3].tag})
}

func TestMultiMapInsertionOrderWithoutComparator(t *testing.T) {
	m := NewMultiMap[string](nil)

	m.Insert("k", "c")
	m.Insert("k", "a")
	m.Insert("k", "b")

	assert.Equal(t, []string{"c", "a", "b"}, m.Get("k"))
}

func TestMultiMapGetAbsent(t *testing.T) {
	m := NewMultiMap[int](nil)
	assert.Empty(t, m.Get("missing"))
}

func TestMultiMapRemove(t *testing.T) {
	m := NewMultiMap[int](nil)
	m.Insert("k", 1)
	m.Insert("k", 2)
	m.Insert("k", 1)

	assert.True(t, m.Remove("k", func(v int) bool { return v == 1 }))
	assert.Equal(t, []int{2, 1}, m.Get("k"))

	assert.False(t, m.Remove("k", func(v int) bool { return v == 9 }))
	assert.False(t, m.Remove("missing", func(v int) bool { return true }))
}

func TestMultiMapRemoveDeletesEmptyKey(t *testing.T) {
	m := NewMultiMap[int](nil)
	m.Insert("k", 1)

	assert.True(t, m.Remove("k", func(v int) bool { return v == 1 }))
	assert.Empty(t, m.Keys())
}

func TestMultiMapPop(t *testing.T) {
	m := NewMultiMap[int](nil)
	m.Insert("k", 1)
	m.Insert("k", 2)

	assert.Equal(t, []int{1, 2}, m.Pop("k"))
	assert.Empty(t, m.Pop("k"))
	assert.Zero(t, m.Size())
}
