package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/maruel/jsonkv/internal/errors"
)

// maxBodySize bounds request bodies.
const maxBodySize = 16 << 20

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters are copied into string fields tagged `path:"name"`, query
// parameters into string and int fields tagged `query:"name"`.
//
// Example:
//
//	type GetKeyRequest struct {
//	    Key string `path:"path"`
//	}
//
//	func (h *KeyHandler) GetKey(ctx context.Context, req GetKeyRequest) (*KeyResponse, error)
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to read request body", "err", err)
			writeError(w, apierrors.BadRequest("failed to read request body"))
			return
		}
		var input In
		if len(bytes.TrimSpace(body)) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(&input); err != nil {
				slog.WarnContext(ctx, "Failed to decode request body", "err", err)
				writeError(w, apierrors.BadRequest("invalid request body").Wrap(err))
				return
			}
		}
		populatePathParams(r, &input)
		populateQueryParams(r, &input)

		output, err := fn(ctx, input)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// populatePathParams copies path parameters into struct fields tagged with
// `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structOf(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams copies query parameters into struct fields tagged with
// `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structOf(input)
	if !ok {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		v := query.Get(tag)
		if v == "" {
			continue
		}
		//nolint:exhaustive // Only string and int are supported.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			if n, err := strconv.Atoi(v); err == nil {
				elem.Field(i).SetInt(int64(n))
			}
		default:
		}
	}
}

func structOf(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   errorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

type errorDetails struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// writeError writes err as JSON. Errors that do not carry a status are
// internal errors.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: errorDetails{Code: apierrors.ErrInternal, Message: err.Error()}}
	status := http.StatusInternalServerError
	var ews apierrors.ErrorWithStatus
	if errors.As(err, &ews) {
		status = ews.StatusCode()
		resp.Error.Code = ews.Code()
		resp.Details = ews.Details()
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Handler error", "err", err, "statusCode", status, "code", resp.Error.Code)
	} else {
		slog.Debug("Handler error", "err", err, "statusCode", status, "code", resp.Error.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
