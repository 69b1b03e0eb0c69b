package infra

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 starts a Postgres 16 container and returns a DSN. If
// TESTEX_TEST_PG_DSN is set, it reuses that database instead.
func StartPostgres16(ctx context.Context) (*PGContainer, string, error) {
	if dsn := os.Getenv("TESTEX_TEST_PG_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("testex"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	notes TEXT
);
`, `
CREATE TABLE IF NOT EXISTS contracts (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients (id),
	contract_number TEXT UNIQUE NOT NULL,
	value NUMERIC(10,2) NOT NULL DEFAULT 0,
	start_date DATE,
	end_date DATE,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	service_type TEXT
);
`, `
CREATE TABLE IF NOT EXISTS operation_logs (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	client_id TEXT,
	operation_type TEXT NOT NULL,
	operation_details TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	user_id TEXT,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT
);
`, `
CREATE TABLE IF NOT EXISTS backups (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	client_id TEXT,
	backup_path TEXT NOT NULL,
	backup_type TEXT NOT NULL DEFAULT 'FULL',
	file_size BIGINT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	status TEXT NOT NULL DEFAULT 'COMPLETED'
);
`}

// CreateSchema applies the customer tables to a fresh test database.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
