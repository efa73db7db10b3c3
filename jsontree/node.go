// Package jsontree is an ordered, mutable JSON document model.
//
// # Node
//
// [Node] is a tagged union: an Object keeps its members in document order, an
// Array is a dense slice of elements, a Scalar keeps its textual value along
// with the JSON type it was read as so that numbers and booleans survive a
// load/save cycle, and Null is JSON null. A nil *Node is read as Null; it is
// used as a placeholder while an array grows.
//
// Object member lookups are case-insensitive: keys of the flattened view
// compare case-insensitively, so two members differing only in case could not
// be told apart anyway.
//
// # Formats
//
// [Parse] accepts standard JSON plus comments and trailing commas. [Encode]
// writes canonical, indented JSON. [ToYAML] projects a tree onto a yaml.v3
// node, keeping member order.
package jsontree

import (
	"fmt"
	"strings"
)

// Kind is the kind of a Node.
type Kind uint8

const (
	// Null is JSON null.
	Null Kind = iota
	// Object is an ordered set of named members.
	Object
	// Array is an ordered sequence of elements.
	Array
	// Scalar is a string, number or boolean.
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Object:
		return "object"
	case Array:
		return "array"
	case Scalar:
		return "scalar"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ScalarType is the JSON type of a Scalar.
type ScalarType uint8

const (
	// String is a JSON string.
	String ScalarType = iota
	// Number is a JSON number, kept verbatim.
	Number
	// Bool is true or false.
	Bool
)

// Field is a named Object member.
type Field struct {
	Name  string
	Value *Node
}

// Node is a JSON value.
type Node struct {
	Kind Kind
	// Type and Value are set for Scalar.
	Type  ScalarType
	Value string
	// Fields is set for Object.
	Fields []Field
	// Items is set for Array. A nil element is null.
	Items []*Node
}

// NewObject returns an empty Object.
func NewObject() *Node {
	return &Node{Kind: Object}
}

// NewArray returns an Array holding items.
func NewArray(items ...*Node) *Node {
	return &Node{Kind: Array, Items: items}
}

// NewString returns a String scalar.
func NewString(s string) *Node {
	return &Node{Kind: Scalar, Type: String, Value: s}
}

// NewNumber returns a Number scalar. s must be a valid JSON number.
func NewNumber(s string) *Node {
	return &Node{Kind: Scalar, Type: Number, Value: s}
}

// NewBool returns a Bool scalar.
func NewBool(b bool) *Node {
	if b {
		return &Node{Kind: Scalar, Type: Bool, Value: "true"}
	}
	return &Node{Kind: Scalar, Type: Bool, Value: "false"}
}

// NewNull returns an explicit Null.
func NewNull() *Node {
	return &Node{Kind: Null}
}

// KindOf returns the kind of n, treating nil as Null.
func KindOf(n *Node) Kind {
	if n == nil {
		return Null
	}
	return n.Kind
}

// IsContainer reports whether n is an Object or an Array.
func (n *Node) IsContainer() bool {
	return n != nil && (n.Kind == Object || n.Kind == Array)
}

// IsLeaf reports whether n is represented by a single flat entry: a scalar,
// a null or an empty container.
func (n *Node) IsLeaf() bool {
	switch KindOf(n) {
	case Object:
		return len(n.Fields) == 0
	case Array:
		return len(n.Items) == 0
	default:
		return true
	}
}

// Text returns the flat value of a leaf: the scalar text, or nil for null and
// empty containers.
func (n *Node) Text() *string {
	if n == nil || n.Kind != Scalar {
		return nil
	}
	v := n.Value
	return &v
}

// Len returns the number of members or elements of a container.
func (n *Node) Len() int {
	switch KindOf(n) {
	case Object:
		return len(n.Fields)
	case Array:
		return len(n.Items)
	default:
		return 0
	}
}

// Lookup returns the value of member name and its position, or -1.
func (n *Node) Lookup(name string) (*Node, int) {
	for i := range n.Fields {
		if strings.EqualFold(n.Fields[i].Name, name) {
			return n.Fields[i].Value, i
		}
	}
	return nil, -1
}

// Put sets member name to v. An existing member keeps its position and the
// casing of its name.
func (n *Node) Put(name string, v *Node) {
	if _, i := n.Lookup(name); i >= 0 {
		n.Fields[i].Value = v
		return
	}
	n.Fields = append(n.Fields, Field{Name: name, Value: v})
}

// Delete removes member name. It returns false if there was none.
func (n *Node) Delete(name string) bool {
	_, i := n.Lookup(name)
	if i < 0 {
		return false
	}
	n.Fields = append(n.Fields[:i], n.Fields[i+1:]...)
	return true
}

// Grow extends an Array with nil placeholders so that index i exists. It
// returns the previous length.
func (n *Node) Grow(i int) int {
	old := len(n.Items)
	for len(n.Items) <= i {
		n.Items = append(n.Items, nil)
	}
	return old
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Type: n.Type, Value: n.Value}
	if n.Fields != nil {
		c.Fields = make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = Field{Name: f.Name, Value: f.Value.Clone()}
		}
	}
	if n.Items != nil {
		c.Items = make([]*Node, len(n.Items))
		for i, it := range n.Items {
			c.Items[i] = it.Clone()
		}
	}
	return c
}

// Equal reports whether a and b hold the same value. Member order matters;
// nil and explicit Null are equal.
func Equal(a, b *Node) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case Null:
		return true
	case Scalar:
		return a.Type == b.Type && a.Value == b.Value
	case Object:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	case Array:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (n *Node) String() string {
	b, err := Encode(n)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return strings.TrimSuffix(string(b), "\n")
}
