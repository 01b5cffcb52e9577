package handlers

import (
	"context"
	"log/slog"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
	"github.com/jmylchreest/skyrad/internal/utils"
)

type GetLevelInput struct{}

// LevelOutput reports the level in effect after the request.
type LevelOutput struct {
	Body struct {
		Level string `json:"level" doc:"Global log level" enum:"debug,info,warn,error"`
	}
}

type SetLevelInput struct {
	Body struct {
		Level string `json:"level" doc:"One of debug, info, warn or error" minLength:"1"`
	}
}

// LoggingHandler reads and changes the daemon's global log level. Changes
// last until the next config reload or restart.
type LoggingHandler struct {
	Logger *slog.Logger
}

func levelOutput() *LevelOutput {
	out := &LevelOutput{}
	out.Body.Level = utils.GetLevel()
	return out
}

func (h *LoggingHandler) GetLevel(context.Context, *GetLevelInput) (*LevelOutput, error) {
	return levelOutput(), nil
}

func (h *LoggingHandler) SetLevel(_ context.Context, input *SetLevelInput) (*LevelOutput, error) {
	previous := utils.GetLevel()
	if err := utils.SetLevel(input.Body.Level); err != nil {
		return nil, toHTTPError(ierrors.InvalidInputf("log level %q is not one of debug, info, warn, error", input.Body.Level))
	}
	h.Logger.Info("http: log level changed", "from", previous, "to", utils.GetLevel())
	return levelOutput(), nil
}

var _ LoggingHandlers = (*LoggingHandler)(nil)

type LoggingHandlers interface {
	GetLevel(ctx context.Context, input *GetLevelInput) (*LevelOutput, error)
	SetLevel(ctx context.Context, input *SetLevelInput) (*LevelOutput, error)
}
