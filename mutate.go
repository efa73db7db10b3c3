package jsonkv

import (
	"fmt"
	"strconv"

	"github.com/maruel/jsonkv/internal/flatmap"
	"github.com/maruel/jsonkv/jsontree"
	"github.com/maruel/jsonkv/keypath"
)

// SetLeaf sets the leaf at key to a string, or to null when value is nil.
//
// Missing containers on the way are created: an array when the following
// segment is an index, an object otherwise. Arrays grow with null elements to
// reach an index, by at most Options.MaxArrayGrowth elements. Whatever was at
// key before, including a whole subtree, is replaced. Member names already in
// the document keep their casing.
func (p *Provider) SetLeaf(key string, value *string) error {
	segs := keypath.Parse(keypath.Canonical(key))
	if len(segs) == 0 {
		return fmt.Errorf("failed to set leaf: %w", ErrEmptyPath)
	}
	leaf := jsontree.NewNull()
	if value != nil {
		leaf = jsontree.NewString(*value)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	e := edit{maxGrowth: p.opts.MaxArrayGrowth}
	if err := e.put(p.root, segs, leaf); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	e.apply(p.flat)
	p.flat.DeletePrefix(e.key)
	p.flat.Set(e.key, value)
	p.changed()
	return nil
}

// ReplaceSubtree replaces the node at key with a copy of n. A nil n is null.
// Numbers and booleans of n must be valid JSON.
//
// At the root, n must be an object; a nil n resets the document to an empty
// object. Every key below key that n does not have disappears, including
// array elements past the new length.
func (p *Provider) ReplaceSubtree(key string, n *jsontree.Node) error {
	if err := jsontree.Validate(n); err != nil {
		return fmt.Errorf("failed to replace %q: %w", key, err)
	}
	segs := keypath.Parse(keypath.Canonical(key))
	if len(segs) == 0 {
		root := jsontree.NewObject()
		if n != nil {
			if n.Kind != jsontree.Object {
				return fmt.Errorf("failed to replace root: %w, got %s", ErrInvalidRootShape, n.Kind)
			}
			root = n.Clone()
		}
		flat := flatmap.Build(root)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return ErrClosed
		}
		p.root, p.flat = root, flat
		p.changed()
		return nil
	}
	if n == nil {
		n = jsontree.NewNull()
	} else {
		n = n.Clone()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	e := edit{maxGrowth: p.opts.MaxArrayGrowth}
	if err := e.put(p.root, segs, n); err != nil {
		return fmt.Errorf("failed to replace %q: %w", key, err)
	}
	e.apply(p.flat)
	p.flat.DeletePrefix(e.key)
	p.flat.Flatten(e.key, n)
	p.changed()
	return nil
}

// Set replaces the node at key with v converted by the Encoder.
//
// The conversion happens before the lock is taken, so v's marshaling code may
// read from the Provider.
func (p *Provider) Set(key string, v any) error {
	n, err := p.opts.Encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return p.ReplaceSubtree(key, n)
}

// edit records the flat entries invalidated while a key is created.
//
// Navigation only fails on nodes that existed before the call: containers
// created on the way match the segments by construction, and growth is
// checked before anything changes. A failed put thus leaves the tree
// untouched and edit is discarded.
type edit struct {
	// maxGrowth bounds how many elements an array may grow by.
	maxGrowth int
	// key is the key stored at, spelled with the member names of the tree.
	key string
	// containers are the keys of containers on the path. They hold at least
	// one child afterwards so they are no longer leaves.
	containers []string
	// nulls are the keys of null elements added by growing arrays.
	nulls []string
}

// put stores n at segs below root, creating the missing containers.
func (e *edit) put(root *jsontree.Node, segs []keypath.Segment, n *jsontree.Node) error {
	if err := e.checkGrowth(root, segs); err != nil {
		return err
	}
	cur := root
	key := ""
	for i, seg := range segs[:len(segs)-1] {
		slot, name, err := e.slot(cur, key, seg)
		if err != nil {
			return err
		}
		key = keypath.Combine(key, name)
		next := segs[i+1]
		switch jsontree.KindOf(*slot) {
		case jsontree.Null:
			*slot = newContainer(next)
		case jsontree.Scalar:
			return &ShapeError{Path: key, Segment: next.Name, Want: containerFor(next), Got: jsontree.Scalar}
		}
		e.containers = append(e.containers, key)
		cur = *slot
	}
	slot, name, err := e.slot(cur, key, segs[len(segs)-1])
	if err != nil {
		return err
	}
	*slot = n
	e.key = keypath.Combine(key, name)
	return nil
}

// checkGrowth walks segs without changing root and fails when an index lies
// too far past the end of the array it addresses, existing or about to be
// created.
func (e *edit) checkGrowth(root *jsontree.Node, segs []keypath.Segment) error {
	cur := root
	key := ""
	for _, seg := range segs {
		var next *jsontree.Node
		switch jsontree.KindOf(cur) {
		case jsontree.Object:
			next, _ = cur.Lookup(seg.Name)
		case jsontree.Array:
			if seg.IsIndex && seg.Index-len(cur.Items) >= e.maxGrowth {
				return &IndexError{Path: key, Index: seg.Index, Len: len(cur.Items)}
			}
			if seg.IsIndex && seg.Index < len(cur.Items) {
				next = cur.Items[seg.Index]
			}
		case jsontree.Null:
			if seg.IsIndex && seg.Index >= e.maxGrowth {
				return &IndexError{Path: key, Index: seg.Index}
			}
		case jsontree.Scalar:
			return nil
		}
		key = keypath.Combine(key, seg.Name)
		cur = next
	}
	return nil
}

// slot returns where the child seg of container cur is stored, growing arrays
// and adding object members as needed, along with the segment as named in
// the tree.
func (e *edit) slot(cur *jsontree.Node, key string, seg keypath.Segment) (**jsontree.Node, string, error) {
	switch cur.Kind {
	case jsontree.Array:
		if !seg.IsIndex {
			return nil, "", &ShapeError{Path: key, Segment: seg.Name, Want: jsontree.Object, Got: jsontree.Array}
		}
		old := cur.Grow(seg.Index)
		for i := old; i < seg.Index; i++ {
			cur.Items[i] = jsontree.NewNull()
			e.nulls = append(e.nulls, keypath.Combine(key, strconv.Itoa(i)))
		}
		return &cur.Items[seg.Index], seg.Name, nil
	case jsontree.Object:
		if seg.IsIndex {
			return nil, "", &ShapeError{Path: key, Segment: seg.Name, Want: jsontree.Array, Got: jsontree.Object}
		}
		if _, i := cur.Lookup(seg.Name); i >= 0 {
			return &cur.Fields[i].Value, cur.Fields[i].Name, nil
		}
		cur.Fields = append(cur.Fields, jsontree.Field{Name: seg.Name})
		return &cur.Fields[len(cur.Fields)-1].Value, seg.Name, nil
	default:
		return nil, "", &ShapeError{Path: key, Segment: seg.Name, Want: containerFor(seg), Got: cur.Kind}
	}
}

func (e *edit) apply(m *flatmap.Map) {
	for _, k := range e.containers {
		m.Delete(k)
	}
	for _, k := range e.nulls {
		m.Set(k, nil)
	}
}

func containerFor(seg keypath.Segment) jsontree.Kind {
	if seg.IsIndex {
		return jsontree.Array
	}
	return jsontree.Object
}

func newContainer(seg keypath.Segment) *jsontree.Node {
	if seg.IsIndex {
		return jsontree.NewArray()
	}
	return jsontree.NewObject()
}
