package handlers

import (
	"context"
)

type HealthInput struct{}

// HealthOutput is served without authentication on /api/v1/health and
// /healthz, so health checks can tell the daemon is up before any box is.
type HealthOutput struct {
	Body struct {
		Status string `json:"status" doc:"Always \"ok\" while the daemon is serving" example:"ok"`
	}
}

func HealthCheck(context.Context, *HealthInput) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

type VersionInput struct{}

type VersionOutput struct {
	Body struct {
		Version   string `json:"version" doc:"Release version" example:"0.3.0"`
		Commit    string `json:"commit" doc:"Source commit"`
		BuildDate string `json:"build_date" doc:"Build timestamp"`
	}
}

// VersionCheck returns a handler that reports the daemon's build.
func VersionCheck(version, commit, buildDate string) func(context.Context, *VersionInput) (*VersionOutput, error) {
	out := &VersionOutput{}
	out.Body.Version, out.Body.Commit, out.Body.BuildDate = version, commit, buildDate
	return func(context.Context, *VersionInput) (*VersionOutput, error) {
		copied := *out
		return &copied, nil
	}
}
