package jsonkv

import (
	"errors"
	"fmt"

	"github.com/maruel/jsonkv/internal/persist"
	"github.com/maruel/jsonkv/jsontree"
)

var (
	// ErrShapeMismatch is returned when a key does not fit the shape of the
	// document, for example an index segment against an object.
	ErrShapeMismatch = errors.New("incompatible path shape")
	// ErrInvalidRootShape is returned when the root would not be an object.
	ErrInvalidRootShape = errors.New("root must be an object")
	// ErrEmptyPath is returned by SetLeaf for the root key.
	ErrEmptyPath = errors.New("path must not be empty")
	// ErrKeyNotFound is returned when no node exists at a key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrClosed is returned by operations on a closed Provider.
	ErrClosed = errors.New("provider is closed")
	// ErrIndexOutOfRange is returned when reaching an index would grow an
	// array by more than Options.MaxArrayGrowth elements.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrReloadConflict is reported to OnReload observers when an external
	// change was ignored because local changes are not saved yet.
	ErrReloadConflict = errors.New("external change conflicts with unsaved changes")
)

// ShapeError describes where a key stopped fitting the document.
type ShapeError struct {
	// Path is the key of the node that was found.
	Path string
	// Segment is the segment that could not be applied to it.
	Segment string
	// Want is the kind of node the segment requires.
	Want jsontree.Kind
	// Got is the kind of node found.
	Got jsontree.Kind
}

func (e *ShapeError) Error() string {
	at := e.Path
	if at == "" {
		at = "root"
	}
	return fmt.Sprintf("%s: segment %q needs %s, found %s at %q", ErrShapeMismatch, e.Segment, e.Want, e.Got, at)
}

// Is makes errors.Is(err, ErrShapeMismatch) true.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// IndexError describes an index too far past the end of an array.
type IndexError struct {
	// Path is the key of the array.
	Path string
	// Index is the requested element.
	Index int
	// Len is the length of the array.
	Len int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d of %q with %d elements", ErrIndexOutOfRange, e.Index, e.Path, e.Len)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) true.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// WriteError describes a failed attempt to write the document.
type WriteError = persist.WriteError
