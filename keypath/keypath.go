// Package keypath encodes and decodes hierarchical keys.
//
// A key is a sequence of segments joined by [Delimiter]. A segment that parses
// as a non-negative base-10 integer addresses an array element; any other
// segment addresses an object member. Keys compare case-insensitively.
//
// The package only performs the syntactic split. Whether a key fits the shape
// of a given tree is decided by the code navigating the tree.
package keypath

import (
	"strconv"
	"strings"
)

// Delimiter separates segments in a key.
const Delimiter = ":"

// Segment is a single component of a key.
type Segment struct {
	// Name is the raw text of the segment, as it appeared in the key.
	Name string
	// Index is the array index when IsIndex is true.
	Index int
	// IsIndex is true when Name is a non-negative integer.
	IsIndex bool
}

// String returns the segment as it appears in a key.
func (s Segment) String() string {
	return s.Name
}

// NewSegment classifies a raw segment.
func NewSegment(name string) Segment {
	i, ok := IsIndex(name)
	return Segment{Name: name, Index: i, IsIndex: ok}
}

// IndexSegment returns the segment addressing array element i.
func IndexSegment(i int) Segment {
	return Segment{Name: strconv.Itoa(i), Index: i, IsIndex: true}
}

// IsIndex reports whether s is an index segment and returns its value.
//
// Only plain ASCII digits are accepted; signs, spaces and overflowing values
// are names.
func IsIndex(s string) (int, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Parse splits key into segments. The empty key is the root and has no
// segments.
func Parse(key string) []Segment {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, Delimiter)
	segs := make([]Segment, len(parts))
	for i, p := range parts {
		segs[i] = NewSegment(p)
	}
	return segs
}

// Join renders segments back into a key.
func Join(segs []Segment) string {
	switch len(segs) {
	case 0:
		return ""
	case 1:
		return segs[0].Name
	}
	var b strings.Builder
	for i, s := range segs {
		if i != 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(s.Name)
	}
	return b.String()
}

// Combine appends segment to parent. An empty parent is the root.
func Combine(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + Delimiter + segment
}

// Parent returns the key of the parent and the last segment of key.
func Parent(key string) (string, string) {
	i := strings.LastIndex(key, Delimiter)
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+len(Delimiter):]
}

// Equal compares two keys case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// HasPrefix reports whether key is prefix itself or lies below it.
//
// The empty prefix is the root and matches every key.
func HasPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	if len(key) < len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
		return false
	}
	return len(key) == len(prefix) || strings.HasPrefix(key[len(prefix):], Delimiter)
}

// Normalize returns the form used to compare keys.
func Normalize(key string) string {
	return strings.ToLower(key)
}

// Compare orders two segments: index segments numerically before names,
// names case-insensitively.
func Compare(a, b string) int {
	ai, aok := IsIndex(a)
	bi, bok := IsIndex(b)
	switch {
	case aok && bok:
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	case aok:
		return -1
	case bok:
		return 1
	}
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Canonical rewrites index segments in their shortest form, so that "a:007"
// and "a:7" name the same element.
func Canonical(key string) string {
	segs := Parse(key)
	changed := false
	for i, s := range segs {
		if s.IsIndex {
			if c := strconv.Itoa(s.Index); c != s.Name {
				segs[i].Name = c
				changed = true
			}
		}
	}
	if !changed {
		return key
	}
	return Join(segs)
}
