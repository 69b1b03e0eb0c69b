// Package database is the PostgreSQL adapter: it looks up the customer's
// client and contract rows, snapshots the customer tables before any write,
// and flips the client and contract statuses inside one transaction.
package database

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"testex/config"
	"testex/db"
	"testex/termination"
)

// repository is the data access the adapter needs; the concrete Repository
// satisfies it, fakes stand in for tests.
type repository interface {
	GetClient(ctx context.Context, clientID string) (Client, error)
	CountContractsByStatus(ctx context.Context, clientID, status string) (int64, error)
	Terminate(ctx context.Context, params TerminateParams) (TerminateResult, error)
	DumpAll(ctx context.Context) (Snapshot, error)
	RecordBackup(ctx context.Context, clientID, path string, size int64) error
	Ping(ctx context.Context) error
}

type Adapter struct {
	cfg  config.Database
	log  *slog.Logger
	pool *pgxpool.Pool
	repo repository
}

func NewAdapter(cfg config.Database, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, log: log}
}

func (a *Adapter) Name() string { return "database" }

// Connect opens the pool and verifies it with a round trip. Reconnecting an
// already-connected adapter is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}
	pool, err := db.NewPool(ctx, a.cfg.DSN)
	if err != nil {
		return fmt.Errorf("database: connect: %w", err)
	}
	if err := db.Verify(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	a.pool = pool
	a.repo = NewRepository(pool)
	return nil
}

func (a *Adapter) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
		a.repo = nil
	}
}

// Lookup reports the client row and its active contract count. A missing
// row is absence, not an error.
func (a *Adapter) Lookup(ctx context.Context, customerID string) (bool, string, error) {
	client, err := a.repo.GetClient(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return false, "no client row found", nil
		}
		return false, "", err
	}

	active, err := a.repo.CountContractsByStatus(ctx, customerID, StatusActive)
	if err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("client %q status=%s, %d active contracts", client.Name, client.Status, active), nil
}

// Backup dumps the customer tables to a gzipped JSON snapshot under the
// configured backup directory, then books it into the backups table.
func (a *Adapter) Backup(ctx context.Context, customerID string) error {
	if a.cfg.BackupDir == "" {
		return fmt.Errorf("database: backup dir not configured")
	}
	snap, err := a.repo.DumpAll(ctx)
	if err != nil {
		return err
	}
	snap.TakenAt = time.Now().UTC()

	if err := os.MkdirAll(a.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("database: create backup dir: %w", err)
	}
	path := filepath.Join(a.cfg.BackupDir, fmt.Sprintf("db-snapshot-%s.json.gz", snap.TakenAt.Format("20060102-150405")))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("database: create snapshot file: %w", err)
	}
	gz := gzip.NewWriter(f)
	encodeErr := json.NewEncoder(gz).Encode(snap)
	if err := gz.Close(); err != nil && encodeErr == nil {
		encodeErr = err
	}
	if err := f.Close(); err != nil && encodeErr == nil {
		encodeErr = err
	}
	if encodeErr != nil {
		return fmt.Errorf("database: write snapshot: %w", encodeErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("database: stat snapshot: %w", err)
	}
	if err := a.repo.RecordBackup(ctx, customerID, path, info.Size()); err != nil {
		return err
	}
	a.log.Info("database snapshot written", "path", path, "bytes", info.Size())
	return nil
}

// Mutate terminates the client and its contracts. Under Simulate it only
// counts what the real run would touch.
func (a *Adapter) Mutate(ctx context.Context, customerID string, mode termination.ExecutionMode) (string, error) {
	if mode == termination.Simulate {
		active, err := a.repo.CountContractsByStatus(ctx, customerID, StatusActive)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SIMULATED: would terminate client and %d active contracts", active), nil
	}

	result, err := a.repo.Terminate(ctx, TerminateParams{
		ClientID:   customerID,
		Notes:      fmt.Sprintf("terminated %s", time.Now().UTC().Format(time.RFC3339)),
		OperatorID: "testex",
	})
	if err != nil {
		return "", err
	}
	if !result.ClientUpdated {
		return "nothing to update (already terminated)", nil
	}
	return fmt.Sprintf("client terminated, %d contracts terminated", result.ContractsUpdated), nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	return a.repo.Ping(ctx)
}

var _ termination.Adapter = (*Adapter)(nil)
