package publish

import (
	"context"

	"edgepub/internal/controlplane"
	"edgepub/internal/durable"
)

// ControlPlane is the remote surface a publish talks to.
type ControlPlane interface {
	durable.Directory
	UploadScript(ctx context.Context, accountID string, upload controlplane.ScriptUpload) error
	Subdomain(ctx context.Context, accountID string) (string, error)
	EnableSubdomain(ctx context.Context, accountID, scriptName string) error
	ListRoutes(ctx context.Context, zoneID string) ([]controlplane.Route, error)
	CreateRoute(ctx context.Context, zoneID string, route controlplane.Route) (controlplane.Route, error)
	UpdateSchedules(ctx context.Context, accountID, scriptName string, crons []string) ([]controlplane.Schedule, error)
}

var _ ControlPlane = (*controlplane.Client)(nil)
