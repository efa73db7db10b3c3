package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tailscale/hujson"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// errTrailingData is returned when a document holds more than one value.
var errTrailingData = errors.New("unexpected data after top-level value")

// Parse decodes a JSON document. Comments, trailing commas and a leading
// UTF-8 byte order mark are accepted. Member order is preserved; when a
// member name repeats, the last value wins and the first position is kept.
func Parse(data []byte) (*Node, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	std, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	d := json.NewDecoder(bytes.NewReader(std))
	d.UseNumber()
	n, err := decodeValue(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if _, err := d.Token(); err != io.EOF {
		if err == nil {
			err = errTrailingData
		}
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return n, nil
}

// ParseReader reads r to the end and parses it.
func ParseReader(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	return Parse(data)
}

func decodeValue(d *json.Decoder) (*Node, error) {
	tok, err := d.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(d)
		case '[':
			return decodeArray(d)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", rune(v))
	case string:
		return NewString(v), nil
	case json.Number:
		return NewNumber(v.String()), nil
	case bool:
		return NewBool(v), nil
	case nil:
		return NewNull(), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(d *json.Decoder) (*Node, error) {
	obj := NewObject()
	for d.More() {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected member name, got %v", tok)
		}
		v, err := decodeValue(d)
		if err != nil {
			return nil, err
		}
		obj.Put(name, v)
	}
	// Closing '}'.
	if _, err := d.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(d *json.Decoder) (*Node, error) {
	arr := NewArray()
	for d.More() {
		v, err := decodeValue(d)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, v)
	}
	// Closing ']'.
	if _, err := d.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	p, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *p
	return nil
}

// FromValue converts an arbitrary Go value to a tree through encoding/json.
func FromValue(v any) (*Node, error) {
	if n, ok := v.(*Node); ok {
		return n.Clone(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return Parse(data)
}
