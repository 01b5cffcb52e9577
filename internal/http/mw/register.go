// Package mw holds the chi middleware and huma registration helpers behind
// the skyrad HTTP API.
package mw

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// SecurityScheme names the bearer API key scheme in the OpenAPI document.
const SecurityScheme = "apiKeyAuth"

// OperationOption adjusts an operation before it is registered.
type OperationOption func(*huma.Operation)

// Handler is the shape of every huma handler in skyrad.
type Handler[I, O any] func(ctx context.Context, input *I) (*O, error)

func WithTags(tags ...string) OperationOption {
	return func(op *huma.Operation) { op.Tags = append(op.Tags, tags...) }
}

func WithSummary(summary string) OperationOption {
	return func(op *huma.Operation) { op.Summary = summary }
}

func WithDescription(desc string) OperationOption {
	return func(op *huma.Operation) { op.Description = desc }
}

func WithOperationID(id string) OperationOption {
	return func(op *huma.Operation) { op.OperationID = id }
}

// WithHidden leaves the operation out of the OpenAPI document.
func WithHidden() OperationOption {
	return func(op *huma.Operation) { op.Hidden = true }
}

// WithDefaultStatus overrides the status returned on success.
func WithDefaultStatus(status int) OperationOption {
	return func(op *huma.Operation) { op.DefaultStatus = status }
}

// WithErrors documents the error statuses a box or channel operation can
// return, on top of the ones huma adds itself.
func WithErrors(statuses ...int) OperationOption {
	return func(op *huma.Operation) { op.Errors = append(op.Errors, statuses...) }
}

// protected marks the operation as requiring an API key.
func protected(op *huma.Operation) {
	op.Security = []map[string][]string{{SecurityScheme: {}}}
}

func register[I, O any](api huma.API, method, path string, h Handler[I, O], opts []OperationOption) {
	op := huma.Operation{Method: method, Path: path}
	for _, opt := range opts {
		opt(&op)
	}
	huma.Register(api, op, h)
}

// PublicGet registers a GET that needs no API key.
func PublicGet[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodGet, path, h, opts)
}

// HiddenGet registers an undocumented, unauthenticated GET such as /healthz.
func HiddenGet[I, O any](api huma.API, path string, h Handler[I, O]) {
	register(api, http.MethodGet, path, h, []OperationOption{WithHidden()})
}

func ProtectedGet[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodGet, path, h, append([]OperationOption{protected}, opts...))
}

func ProtectedPost[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodPost, path, h, append([]OperationOption{protected}, opts...))
}

func ProtectedPut[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodPut, path, h, append([]OperationOption{protected}, opts...))
}

func ProtectedDelete[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodDelete, path, h, append([]OperationOption{protected}, opts...))
}
