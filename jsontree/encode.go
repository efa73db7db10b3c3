package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Indent is the indentation used by Encode.
const Indent = "  "

// Encode writes n as indented JSON followed by a newline.
func Encode(n *Node) ([]byte, error) {
	var compact bytes.Buffer
	if err := writeCompact(&compact, n); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Grow(compact.Len() * 2)
	if err := json.Indent(&out, compact.Bytes(), "", Indent); err != nil {
		return nil, fmt.Errorf("failed to indent JSON: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	if err := writeCompact(&b, n); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeCompact(b *bytes.Buffer, n *Node) error {
	switch KindOf(n) {
	case Null:
		b.WriteString("null")
	case Scalar:
		switch n.Type {
		case String:
			writeString(b, n.Value)
		default:
			if err := validScalar(n); err != nil {
				return err
			}
			b.WriteString(n.Value)
		}
	case Object:
		b.WriteByte('{')
		for i, f := range n.Fields {
			if i != 0 {
				b.WriteByte(',')
			}
			writeString(b, f.Name)
			b.WriteByte(':')
			if err := writeCompact(b, f.Value); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case Array:
		b.WriteByte('[')
		for i, it := range n.Items {
			if i != 0 {
				b.WriteByte(',')
			}
			if err := writeCompact(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		return fmt.Errorf("unknown node kind %s", n.Kind)
	}
	return nil
}

// Validate reports the first scalar of n that Encode would reject.
func Validate(n *Node) error {
	switch KindOf(n) {
	case Null:
		return nil
	case Scalar:
		return validScalar(n)
	case Object:
		for _, f := range n.Fields {
			if err := Validate(f.Value); err != nil {
				return fmt.Errorf("%q: %w", f.Name, err)
			}
		}
		return nil
	case Array:
		for i, it := range n.Items {
			if err := Validate(it); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown node kind %s", n.Kind)
	}
}

func validScalar(n *Node) error {
	switch n.Type {
	case String:
		return nil
	case Number:
		// A valid JSON text starting with a digit or a minus is a number.
		if n.Value == "" || !strings.ContainsRune("-0123456789", rune(n.Value[0])) || !json.Valid([]byte(n.Value)) {
			return fmt.Errorf("invalid number %q", n.Value)
		}
		return nil
	case Bool:
		if n.Value != "true" && n.Value != "false" {
			return fmt.Errorf("invalid bool %q", n.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown scalar type %d", n.Type)
	}
}

func writeString(b *bytes.Buffer, s string) {
	// Marshal of a string cannot fail.
	data, _ := json.Marshal(s)
	b.Write(data)
}
