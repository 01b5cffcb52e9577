package routes

import (
	"context"

	"github.com/jmylchreest/skyrad/internal/http/handlers"
)

// StubHandlers returns handlers that never do anything. Huma only needs the
// function signatures to build the OpenAPI document.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck:  handlers.HealthCheck,
		VersionCheck: handlers.VersionCheck("", "", ""),
		Box:          stubBoxHandlers{},
		Channel:      stubChannelHandlers{},
		APIKey:       stubAPIKeyHandlers{},
		Logging:      stubLoggingHandlers{},
	}
}

type stubBoxHandlers struct{}

func (stubBoxHandlers) ListBoxes(context.Context, *handlers.ListBoxesInput) (*handlers.ListBoxesOutput, error) {
	return nil, nil
}

func (stubBoxHandlers) GetBox(context.Context, *handlers.GetBoxInput) (*handlers.BoxOutput, error) {
	return nil, nil
}

func (stubBoxHandlers) RefreshBox(context.Context, *handlers.BoxActionInput) (*handlers.BoxOutput, error) {
	return nil, nil
}

func (stubBoxHandlers) ConnectBox(context.Context, *handlers.BoxActionInput) (*handlers.BoxOutput, error) {
	return nil, nil
}

func (stubBoxHandlers) DisconnectBox(context.Context, *handlers.BoxActionInput) (*handlers.DisconnectBoxOutput, error) {
	return nil, nil
}

type stubChannelHandlers struct{}

func (stubChannelHandlers) GetChannel(context.Context, *handlers.GetChannelInput) (*handlers.ChannelOutput, error) {
	return nil, nil
}

func (stubChannelHandlers) SetChannelState(context.Context, *handlers.SetChannelStateInput) (*handlers.ChannelOutput, error) {
	return nil, nil
}

type stubAPIKeyHandlers struct{}

func (stubAPIKeyHandlers) CreateAPIKey(context.Context, *handlers.CreateAPIKeyInput) (*handlers.CreateAPIKeyOutput, error) {
	return nil, nil
}

func (stubAPIKeyHandlers) ListAPIKeys(context.Context, *handlers.ListAPIKeysInput) (*handlers.ListAPIKeysOutput, error) {
	return nil, nil
}

func (stubAPIKeyHandlers) DeleteAPIKey(context.Context, *handlers.DeleteAPIKeyInput) (*handlers.DeleteAPIKeyOutput, error) {
	return nil, nil
}

func (stubAPIKeyHandlers) SetAPIKeyDisabled(context.Context, *handlers.SetAPIKeyDisabledInput) (*handlers.SetAPIKeyDisabledOutput, error) {
	return nil, nil
}

type stubLoggingHandlers struct{}

func (stubLoggingHandlers) GetLevel(context.Context, *handlers.GetLevelInput) (*handlers.LevelOutput, error) {
	return nil, nil
}

func (stubLoggingHandlers) SetLevel(context.Context, *handlers.SetLevelInput) (*handlers.LevelOutput, error) {
	return nil, nil
}
