package mcp

import (
	"context"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/session"
)

// DataSource abstracts where the MCP tools read from. Local (in-process) and
// HTTPClient (remote via REST API) both satisfy it.
type DataSource interface {
	ListProfiles(ctx context.Context) ([]models.CalibrationProfile, error)
	ResolveProfile(ctx context.Context, name string) (models.CalibrationProfile, error)
	SessionState(ctx context.Context) (session.Snapshot, error)
}

// Registry is the part of the profile registry the tools need.
type Registry interface {
	Resolve(ctx context.Context, name string) (models.CalibrationProfile, error)
	List(ctx context.Context) ([]models.CalibrationProfile, error)
}

// Local serves tools from the running process.
type Local struct {
	Profiles Registry
	Manager  *session.Manager
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

func (l Local) ListProfiles(ctx context.Context) ([]models.CalibrationProfile, error) {
	return l.Profiles.List(ctx)
}

func (l Local) ResolveProfile(ctx context.Context, name string) (models.CalibrationProfile, error) {
	return l.Profiles.Resolve(ctx, name)
}

// SessionState reads the published snapshot; it never touches the frame path.
func (l Local) SessionState(_ context.Context) (session.Snapshot, error) {
	return l.Manager.Snapshot(), nil
}
