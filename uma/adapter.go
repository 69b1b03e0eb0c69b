package uma

import (
	"context"
	"fmt"
	"log/slog"

	"testex/config"
	"testex/termination"
)

// api is the wire surface the adapter drives; *API satisfies it, fakes
// stand in for tests.
type api interface {
	Health(ctx context.Context) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
	RemoveService(ctx context.Context, clientID, service string) error
	Disable(ctx context.Context, clientID, reason string) error
	UpdateStatus(ctx context.Context, clientID, status, notes string) error
	GetLogs(ctx context.Context, clientID string) ([]LogEntry, error)
	StartPurge(ctx context.Context, clientID string, force bool) (string, error)
}

// Adapter drives the UMA deprovisioning sequence: remove each active
// service, disable the account, mark it terminated, and optionally kick
// off an asynchronous purge.
type Adapter struct {
	cfg config.UMA
	log *slog.Logger
	api api
	// Purge requests the fire-and-forget deep-delete after deprovisioning.
	Purge bool
}

func NewAdapter(cfg config.UMA, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, log: log}
}

func (a *Adapter) Name() string { return "uma" }

// Connect builds the HTTP client and validates it against /health.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.api == nil {
		a.api = NewAPI(a.cfg)
	}
	if err := a.api.Health(ctx); err != nil {
		return fmt.Errorf("uma: connect: %w", err)
	}
	return nil
}

func (a *Adapter) Close() {}

func (a *Adapter) Lookup(ctx context.Context, customerID string) (bool, string, error) {
	client, err := a.api.GetClient(ctx, customerID)
	if err != nil {
		return false, "", err
	}
	if client == nil {
		return false, "no remote client found", nil
	}
	return true, fmt.Sprintf("client %q status=%s, %d active services", client.Name, client.Status, len(client.Services)), nil
}

// Backup is a no-op: the remote system owns its own retention, and the
// recent-activity log is captured into the audit trail during Mutate.
func (a *Adapter) Backup(ctx context.Context, customerID string) error {
	return nil
}

// Mutate enumerates the client's active services, removes each, disables
// the account, and marks it terminated. Purge, when requested, is started
// and reported but never awaited.
func (a *Adapter) Mutate(ctx context.Context, customerID string, mode termination.ExecutionMode) (string, error) {
	client, err := a.api.GetClient(ctx, customerID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return "nothing to update (no remote client)", nil
	}

	if logs, err := a.api.GetLogs(ctx, customerID); err == nil {
		a.log.Info("remote activity before deprovisioning", "customer_id", customerID, "entries", len(logs))
	}

	if mode == termination.Simulate {
		return fmt.Sprintf("SIMULATED: would remove %d services and disable client", len(client.Services)), nil
	}

	removed := 0
	for _, service := range client.Services {
		if err := a.api.RemoveService(ctx, customerID, service); err != nil {
			return "", fmt.Errorf("uma: remove service %s: %w", service, err)
		}
		removed++
	}

	if err := a.api.Disable(ctx, customerID, "contract terminated"); err != nil {
		return "", err
	}
	if err := a.api.UpdateStatus(ctx, customerID, "TERMINATED", "terminated by testex"); err != nil {
		return "", err
	}

	detail := fmt.Sprintf("%d services removed, client disabled", removed)
	if a.Purge {
		purgeID, err := a.api.StartPurge(ctx, customerID, true)
		if err != nil {
			a.log.Warn("purge start failed", "customer_id", customerID, "error", err)
			detail += ", purge start failed"
		} else {
			a.log.Info("purge started", "customer_id", customerID, "purge_id", purgeID)
			detail += ", purge " + purgeID + " started"
		}
	}
	return detail, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.api == nil {
		a.api = NewAPI(a.cfg)
	}
	return a.api.Health(ctx)
}

var _ termination.Adapter = (*Adapter)(nil)
