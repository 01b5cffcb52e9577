package handlers

import (
	"context"

	"github.com/jmylchreest/skyrad/internal/apikey"
)

// CreateAPIKeyInput names the new key and optionally bounds its lifetime.
type CreateAPIKeyInput struct {
	Body struct {
		Name      string `json:"name" doc:"Unique display name for the key" minLength:"1"`
		ExpiresIn string `json:"expires_in,omitempty" doc:"Lifetime as a duration ('720h'), days ('30d') or seconds; empty never expires"`
	}
}

// CreateAPIKeyOutput carries the new key, secret included. It is returned
// with 201 and is the only response that ever shows the secret.
type CreateAPIKeyOutput struct {
	Body APIKeyResponse
}

type ListAPIKeysInput struct{}

type ListAPIKeysOutput struct {
	Body []APIKeyResponse
}

type DeleteAPIKeyInput struct {
	Key string `path:"key" doc:"Key secret or name"`
}

type DeleteAPIKeyOutput struct{}

type SetAPIKeyDisabledInput struct {
	Key  string `path:"key" doc:"Key secret or name"`
	Body struct {
		Disabled bool `json:"disabled" doc:"True rejects the key until it is re-enabled"`
	}
}

type SetAPIKeyDisabledOutput struct {
	Body APIKeyResponse
}

// APIKeyHandler serves the key management endpoints. Errors from the
// manager keep their kind, so a duplicate name is a 400 and an unknown key
// a 404.
type APIKeyHandler struct {
	Manager *apikey.Manager
}

func (h *APIKeyHandler) CreateAPIKey(_ context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
	ttl, err := apikey.ParseExpiry(input.Body.ExpiresIn)
	if err != nil {
		return nil, toHTTPError(err)
	}
	key, err := h.Manager.CreateAPIKey(input.Body.Name, ttl)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &CreateAPIKeyOutput{Body: APIKeyFromConfig(key, true)}, nil
}

// ListAPIKeys lists every stored key without its secret.
func (h *APIKeyHandler) ListAPIKeys(_ context.Context, _ *ListAPIKeysInput) (*ListAPIKeysOutput, error) {
	stored := h.Manager.ListAPIKeys()
	out := &ListAPIKeysOutput{Body: make([]APIKeyResponse, 0, len(stored))}
	for i := range stored {
		out.Body = append(out.Body, APIKeyFromConfig(&stored[i], false))
	}
	return out, nil
}

func (h *APIKeyHandler) DeleteAPIKey(_ context.Context, input *DeleteAPIKeyInput) (*DeleteAPIKeyOutput, error) {
	if err := h.Manager.DeleteAPIKey(input.Key); err != nil {
		return nil, toHTTPError(err)
	}
	return &DeleteAPIKeyOutput{}, nil
}

func (h *APIKeyHandler) SetAPIKeyDisabled(_ context.Context, input *SetAPIKeyDisabledInput) (*SetAPIKeyDisabledOutput, error) {
	key, err := h.Manager.SetAPIKeyDisabledStatus(input.Key, input.Body.Disabled)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &SetAPIKeyDisabledOutput{Body: APIKeyFromConfig(key, false)}, nil
}

var _ APIKeyHandlers = (*APIKeyHandler)(nil)

// APIKeyHandlers is the key management surface registered on the router.
type APIKeyHandlers interface {
	CreateAPIKey(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error)
	ListAPIKeys(ctx context.Context, input *ListAPIKeysInput) (*ListAPIKeysOutput, error)
	DeleteAPIKey(ctx context.Context, input *DeleteAPIKeyInput) (*DeleteAPIKeyOutput, error)
	SetAPIKeyDisabled(ctx context.Context, input *SetAPIKeyDisabledInput) (*SetAPIKeyDisabledOutput, error)
}
