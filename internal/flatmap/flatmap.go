// Package flatmap is the flattened view of a JSON tree.
//
// Every leaf of the tree (scalar, null, empty object, empty array) is one
// entry keyed by its [keypath] key. Scalars map to their text, everything else
// to nil. Keys compare case-insensitively and keep the casing they were set
// with.
//
// Map is not safe for concurrent use; its owner guards it.
package flatmap

import (
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/jsonkv/jsontree"
	"github.com/maruel/jsonkv/keypath"
)

type entry struct {
	key   string
	value *string
}

// Map maps flat keys to optional string values.
type Map struct {
	entries map[string]entry
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]entry)}
}

// Build flattens root into a new Map.
func Build(root *jsontree.Node) *Map {
	m := New()
	m.Flatten("", root)
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Get returns the value at key. A nil value with found set means null.
func (m *Map) Get(key string) (*string, bool) {
	e, ok := m.entries[keypath.Normalize(key)]
	if !ok {
		return nil, false
	}
	return clone(e.value), true
}

// Set stores value at key.
func (m *Map) Set(key string, value *string) {
	m.entries[keypath.Normalize(key)] = entry{key: key, value: clone(value)}
}

// Delete removes key. It returns false if it was absent.
func (m *Map) Delete(key string) bool {
	k := keypath.Normalize(key)
	if _, ok := m.entries[k]; !ok {
		return false
	}
	delete(m.entries, k)
	return true
}

// DeletePrefix removes key and every entry below it, and returns how many
// entries were removed. The empty key clears the map.
func (m *Map) DeletePrefix(key string) int {
	if key == "" {
		n := len(m.entries)
		clear(m.entries)
		return n
	}
	n := 0
	for k, e := range m.entries {
		if keypath.HasPrefix(e.key, key) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Clear removes all entries.
func (m *Map) Clear() {
	clear(m.entries)
}

// Flatten adds one entry per leaf of n under key.
//
// Empty objects and empty arrays become a single nil entry at their own key,
// the same as null: the flat view cannot tell them apart. At the root (empty
// key) a leaf adds nothing since the root is not addressable.
func (m *Map) Flatten(key string, n *jsontree.Node) {
	switch jsontree.KindOf(n) {
	case jsontree.Object:
		if len(n.Fields) != 0 {
			for _, f := range n.Fields {
				m.Flatten(keypath.Combine(key, f.Name), f.Value)
			}
			return
		}
	case jsontree.Array:
		if len(n.Items) != 0 {
			for i, it := range n.Items {
				m.Flatten(keypath.Combine(key, strconv.Itoa(i)), it)
			}
			return
		}
	}
	if key != "" {
		m.Set(key, n.Text())
	}
}

// Keys returns all keys, sorted.
func (m *Map) Keys() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.key)
	}
	slices.SortFunc(out, compareKeys)
	return out
}

// All iterates over all entries in unspecified order.
func (m *Map) All() iter.Seq2[string, *string] {
	return func(yield func(string, *string) bool) {
		for _, e := range m.entries {
			if !yield(e.key, clone(e.value)) {
				return
			}
		}
	}
}

// Children returns the distinct immediate child segments below prefix, with
// index segments first in numeric order. The empty prefix lists top-level
// segments.
func (m *Map) Children(prefix string) []string {
	seen := make(map[string]string)
	for _, e := range m.entries {
		rest, ok := below(e.key, prefix)
		if !ok {
			continue
		}
		seg, _, _ := strings.Cut(rest, keypath.Delimiter)
		k := keypath.Normalize(seg)
		if _, dup := seen[k]; !dup {
			seen[k] = seg
		}
	}
	out := make([]string, 0, len(seen))
	for _, seg := range seen {
		out = append(out, seg)
	}
	slices.SortFunc(out, keypath.Compare)
	return out
}

// below returns the part of key after prefix and its delimiter.
func below(key, prefix string) (string, bool) {
	if prefix == "" {
		return key, true
	}
	if len(key) <= len(prefix)+len(keypath.Delimiter) || !keypath.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix)+len(keypath.Delimiter):], true
}

func compareKeys(a, b string) int {
	as, bs := keypath.Parse(a), keypath.Parse(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := keypath.Compare(as[i].Name, bs[i].Name); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func clone(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
