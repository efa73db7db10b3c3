package jsonkv

import "github.com/maruel/jsonkv/jsontree"

// Encoder converts Go values into trees for Provider.Set.
type Encoder interface {
	Encode(v any) (*jsontree.Node, error)
}

// JSONEncoder converts values through encoding/json, honoring json struct
// tags and json.Marshaler.
type JSONEncoder struct{}

// Encode implements Encoder.
func (JSONEncoder) Encode(v any) (*jsontree.Node, error) {
	return jsontree.FromValue(v)
}
