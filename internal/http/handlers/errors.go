package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

// toHTTPError maps daemon error kinds onto HTTP status codes.
func toHTTPError(err error) error {
	msg := err.Error()
	switch {
	case ierrors.IsNotFound(err):
		return huma.Error404NotFound(msg)
	case ierrors.IsInvalidInput(err):
		return huma.Error400BadRequest(msg)
	case ierrors.IsSafety(err):
		return huma.Error409Conflict(msg)
	case ierrors.IsDeviceUnavailable(err):
		return huma.Error503ServiceUnavailable(msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return huma.Error504GatewayTimeout(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}
