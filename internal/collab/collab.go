package collab

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Provisioner creates collaboration workspaces and grants access to them.
type Provisioner interface {
	ProvisionWorkspace(ctx context.Context, projectID uuid.UUID) (string, error)
	GrantAccess(ctx context.Context, workspaceRef string, userID uuid.UUID, role string) error
}

// Notifier delivers a notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) error
}

// NoopProvisioner is used when no collaboration service is configured. The
// workspace ref is derived from the project id so retries stay stable.
type NoopProvisioner struct {
	log zerolog.Logger
}

func NewNoopProvisioner(log zerolog.Logger) *NoopProvisioner {
	return &NoopProvisioner{log: log}
}

func (p *NoopProvisioner) ProvisionWorkspace(_ context.Context, projectID uuid.UUID) (string, error) {
	p.log.Debug().Str("project_id", projectID.String()).Msg("workspace provisioning skipped")
	return "local:" + projectID.String(), nil
}

func (p *NoopProvisioner) GrantAccess(_ context.Context, workspaceRef string, userID uuid.UUID, role string) error {
	p.log.Debug().
		Str("workspace", workspaceRef).
		Str("user_id", userID.String()).
		Str("role", role).
		Msg("workspace access skipped")
	return nil
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, payload map[string]any) error {
	n.log.Info().
		Str("user_id", userID.String()).
		Str("kind", kind).
		Fields(payload).
		Msg("notification")
	return nil
}
