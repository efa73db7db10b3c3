package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/maruel/jsonkv"
	apierrors "github.com/maruel/jsonkv/internal/errors"
	"github.com/maruel/jsonkv/jsontree"
)

// Store is the part of jsonkv.Provider the handlers use.
type Store interface {
	TryGet(key string) (*string, bool)
	ChildKeys(prefix string) []string
	Keys() []string
	Subtree(key string) (*jsontree.Node, bool)
	SetLeaf(key string, value *string) error
	ReplaceSubtree(key string, n *jsontree.Node) error
	Flush(ctx context.Context) error
}

// GetKeyRequest is a request to read a leaf.
type GetKeyRequest struct {
	Key string `path:"path"`
}

// SetKeyRequest is a request to set a leaf. A null value stores null.
type SetKeyRequest struct {
	Key   string  `path:"path" json:"-"`
	Value *string `json:"value"`
}

// KeyResponse holds a leaf value.
type KeyResponse struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
	Found bool    `json:"found"`
}

// ChildrenRequest lists the children of a key.
type ChildrenRequest struct {
	Prefix string `query:"prefix"`
}

// ChildrenResponse holds child segments.
type ChildrenResponse struct {
	Keys []string `json:"keys"`
}

// GetTreeRequest is a request to read a subtree.
type GetTreeRequest struct {
	Key string `path:"path"`
}

// ReplaceTreeRequest replaces a subtree with the request body, which may be
// any JSON value. The body is required: null is sent as the literal null.
type ReplaceTreeRequest struct {
	Key   string `path:"path"`
	Value *jsontree.Node
}

// UnmarshalJSON takes the whole body as the new value.
func (r *ReplaceTreeRequest) UnmarshalJSON(data []byte) error {
	n, err := jsontree.Parse(data)
	if err != nil {
		return err
	}
	r.Value = n
	return nil
}

// TreeResponse holds a subtree.
type TreeResponse struct {
	Key   string         `json:"key"`
	Value *jsontree.Node `json:"value"`
}

// FlushRequest is the request type for flush (empty).
type FlushRequest struct{}

// FlushResponse is the response for flush.
type FlushResponse struct {
	Status string `json:"status"`
}

// KeyHandler serves reads and writes of the document.
type KeyHandler struct {
	store Store
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler(store Store) *KeyHandler {
	return &KeyHandler{store: store}
}

// GetKey returns the leaf at the key.
func (h *KeyHandler) GetKey(ctx context.Context, req GetKeyRequest) (*KeyResponse, error) {
	if req.Key == "" {
		return nil, apierrors.BadRequest("key is required")
	}
	v, ok := h.store.TryGet(req.Key)
	if !ok {
		return nil, apierrors.KeyNotFound(req.Key)
	}
	return &KeyResponse{Key: req.Key, Value: v, Found: true}, nil
}

// SetKey sets the leaf at the key.
func (h *KeyHandler) SetKey(ctx context.Context, req SetKeyRequest) (*KeyResponse, error) {
	if err := h.store.SetLeaf(req.Key, req.Value); err != nil {
		return nil, toAPIError(err)
	}
	return &KeyResponse{Key: req.Key, Value: req.Value, Found: true}, nil
}

// ListChildren returns the immediate children of the prefix.
func (h *KeyHandler) ListChildren(ctx context.Context, req ChildrenRequest) (*ChildrenResponse, error) {
	return &ChildrenResponse{Keys: h.store.ChildKeys(req.Prefix)}, nil
}

// GetTree returns the subtree at the key, or the whole document.
func (h *KeyHandler) GetTree(ctx context.Context, req GetTreeRequest) (*TreeResponse, error) {
	n, ok := h.store.Subtree(req.Key)
	if !ok {
		return nil, apierrors.KeyNotFound(req.Key)
	}
	return &TreeResponse{Key: req.Key, Value: n}, nil
}

// ReplaceTree replaces the subtree at the key.
func (h *KeyHandler) ReplaceTree(ctx context.Context, req ReplaceTreeRequest) (*TreeResponse, error) {
	if req.Value == nil {
		return nil, apierrors.BadRequest("request body is required")
	}
	if err := h.store.ReplaceSubtree(req.Key, req.Value); err != nil {
		return nil, toAPIError(err)
	}
	n, _ := h.store.Subtree(req.Key)
	return &TreeResponse{Key: req.Key, Value: n}, nil
}

// Flush writes pending changes to disk.
func (h *KeyHandler) Flush(ctx context.Context, req FlushRequest) (*FlushResponse, error) {
	if err := h.store.Flush(ctx); err != nil {
		return nil, toAPIError(err)
	}
	return &FlushResponse{Status: "ok"}, nil
}

// toAPIError maps store errors to API errors.
func toAPIError(err error) error {
	var we *jsonkv.WriteError
	switch {
	case errors.Is(err, jsonkv.ErrShapeMismatch):
		return apierrors.ShapeMismatch(err)
	case errors.Is(err, jsonkv.ErrIndexOutOfRange):
		return apierrors.IndexOutOfRange(err)
	case errors.Is(err, jsonkv.ErrInvalidRootShape):
		return apierrors.InvalidRootShape(err)
	case errors.Is(err, jsonkv.ErrEmptyPath):
		return apierrors.BadRequest("key is required").Wrap(err)
	case errors.Is(err, jsonkv.ErrKeyNotFound):
		return apierrors.NewAPIError(http.StatusNotFound, apierrors.ErrKeyNotFound, "key not found").Wrap(err)
	case errors.Is(err, jsonkv.ErrClosed):
		return apierrors.Unavailable(err)
	case errors.As(err, &we):
		return apierrors.Storage(err).WithDetail("attempt", we.Attempt)
	default:
		return apierrors.Internal("unexpected error", err)
	}
}
