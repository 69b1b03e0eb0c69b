package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrClientNotFound is returned by GetClient when no row exists; callers
// that treat absence as a value should check with errors.Is.
var ErrClientNotFound = errors.New("database: client not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetClient fetches one client row by id.
func (r *Repository) GetClient(ctx context.Context, clientID string) (Client, error) {
	const query = `
		SELECT id, name, email, phone, status, created_at, updated_at, notes
		FROM clients
		WHERE id = $1
	`

	var c Client
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, fmt.Errorf("database: get client: %w", err)
	}
	return c, nil
}

// CountContractsByStatus returns how many contracts the client holds in the
// given status.
func (r *Repository) CountContractsByStatus(ctx context.Context, clientID, status string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contracts WHERE client_id = $1 AND status = $2`,
		clientID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("database: count contracts: %w", err)
	}
	return n, nil
}

// Terminate applies the full termination inside one transaction: the client
// status flip, the contract status flips, and exactly one audit row. A
// client with no row to update is a zero-count success, not an error.
func (r *Repository) Terminate(ctx context.Context, params TerminateParams) (TerminateResult, error) {
	if params.ClientID == "" {
		return TerminateResult{}, fmt.Errorf("database: missing client id")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return TerminateResult{}, fmt.Errorf("database: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var result TerminateResult

	const updateClient = `
		UPDATE clients
		SET status = 'TERMINATED',
		    updated_at = NOW(),
		    notes = COALESCE(notes || E'\n', '') || $2
		WHERE id = $1 AND status <> 'TERMINATED'
	`
	tag, err := tx.Exec(ctx, updateClient, params.ClientID, params.Notes)
	if err != nil {
		return TerminateResult{}, fmt.Errorf("database: update client: %w", err)
	}
	result.ClientUpdated = tag.RowsAffected() > 0

	const updateContracts = `
		UPDATE contracts
		SET status = 'TERMINATED'
		WHERE client_id = $1 AND status NOT IN ('TERMINATED', 'EXPIRED')
	`
	tag, err = tx.Exec(ctx, updateContracts, params.ClientID)
	if err != nil {
		return TerminateResult{}, fmt.Errorf("database: update contracts: %w", err)
	}
	result.ContractsUpdated = tag.RowsAffected()

	const insertAudit = `
		INSERT INTO operation_logs (client_id, operation_type, operation_details, user_id, success)
		VALUES ($1, 'TERMINATION', $2, $3, TRUE)
		RETURNING id
	`
	detail := fmt.Sprintf("client updated=%t contracts updated=%d", result.ClientUpdated, result.ContractsUpdated)
	if err := tx.QueryRow(ctx, insertAudit, params.ClientID, detail, params.OperatorID).Scan(&result.AuditRowID); err != nil {
		return TerminateResult{}, fmt.Errorf("database: insert audit row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TerminateResult{}, fmt.Errorf("database: commit tx: %w", err)
	}
	return result, nil
}

// DumpAll reads every row of the customer tables for the pre-mutation
// snapshot.
func (r *Repository) DumpAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, phone, status, created_at, updated_at, notes FROM clients ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("database: dump clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.Notes); err != nil {
			return snap, fmt.Errorf("database: scan client: %w", err)
		}
		snap.Clients = append(snap.Clients, c)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("database: iterate clients: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT id, client_id, contract_number, value, start_date, end_date, status, service_type FROM contracts ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("database: dump contracts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ContractNumber, &c.Value, &c.StartDate, &c.EndDate, &c.Status, &c.ServiceType); err != nil {
			return snap, fmt.Errorf("database: scan contract: %w", err)
		}
		snap.Contracts = append(snap.Contracts, c)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("database: iterate contracts: %w", err)
	}

	return snap, nil
}

// RecordBackup books the snapshot into the backups table.
func (r *Repository) RecordBackup(ctx context.Context, clientID, path string, size int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO backups (client_id, backup_path, backup_type, file_size, status)
		 VALUES ($1, $2, 'FULL', $3, 'COMPLETED')`,
		clientID, path, size)
	if err != nil {
		return fmt.Errorf("database: record backup: %w", err)
	}
	return nil
}

// Ping is the liveness round trip.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}
