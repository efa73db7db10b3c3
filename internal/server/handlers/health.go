package handlers

import "context"

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
	Keys   int    `json:"keys"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health returns the health status of the server and the number of leaves in
// the document.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok", Keys: len(h.store.Keys())}, nil
}
