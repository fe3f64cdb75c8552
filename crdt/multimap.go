package crdt

import (
	"sort"
)

// MultiMap maps a key to a mutable ordered sequence of values. With a
// comparator the sequence is re-sorted after every insert using a stable sort,
// so equal elements retain their relative insertion order. Without a
// comparator the sequence simply keeps insertion order.
type MultiMap[V any] struct {
	entries map[string][]V
	less    func(a, b V) bool
}

// NewMultiMap creates a MultiMap with the given comparator. A nil comparator
// keeps insertion order.
func NewMultiMap[V any](less func(a, b V) bool) *MultiMap[V] {
	return &MultiMap[V]{
		entries: make(map[string][]V),
		less:    less,
	}
}

// Get returns the sequence stored under key, or an empty sequence if absent.
// The returned slice is the live backing sequence; callers must not modify it.
func (m *MultiMap[V]) Get(key string) []V {
	return m.entries[key]
}

// Insert appends v under key and re-sorts the sequence when a comparator is
// configured.
func (m *MultiMap[V]) Insert(key string, v V) {
	seq := append(m.entries[key], v)
	if m.less != nil {
		sort.SliceStable(seq, func(i, j int) bool {
			return m.less(seq[i], seq[j])
		})
	}
	m.entries[key] = seq
}

// Remove deletes the first value under key matched by the predicate. It
// reports whether a value was removed; the key is deleted when its sequence
// becomes empty.
func (m *MultiMap[V]) Remove(key string, match func(V) bool) bool {
	seq, ok := m.entries[key]
	if !ok {
		return false
	}
	for i, v := range seq {
		if match(v) {
			seq = append(seq[:i], seq[i+1:]...)
			if len(seq) == 0 {
				delete(m.entries, key)
			} else {
				m.entries[key] = seq
			}
			return true
		}
	}
	return false
}

// Pop drains and returns the whole sequence under key, deleting the key.
// It returns an empty sequence if the key is absent.
func (m *MultiMap[V]) Pop(key string) []V {
	seq, ok := m.entries[key]
	if !ok {
		return nil
	}
	delete(m.entries, key)
	return seq
}

// Delete removes the key and its sequence.
func (m *MultiMap[V]) Delete(key string) {
	delete(m.entries, key)
}

// Keys returns the keys that currently hold at least one value.
func (m *MultiMap[V]) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Size returns the total number of stored values across all keys.
func (m *MultiMap[V]) Size() int {
	n := 0
	for _, seq := range m.entries {
		n += len(seq)
	}
	return n
}
