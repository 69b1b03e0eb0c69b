package database

import "time"

// Status values mirror the clients/contracts status columns.
const (
	StatusActive     = "ACTIVE"
	StatusInactive   = "INACTIVE"
	StatusTerminated = "TERMINATED"
	StatusSuspended  = "SUSPENDED"
	StatusExpired    = "EXPIRED"
)

// Client mirrors the clients table columns touched by the adapter.
type Client struct {
	ID        string
	Name      string
	Email     *string
	Phone     *string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Notes     *string
}

// Contract mirrors the contracts table.
type Contract struct {
	ID             int64
	ClientID       string
	ContractNumber string
	Value          float64
	StartDate      *time.Time
	EndDate        *time.Time
	Status         string
	ServiceType    *string
}

// TerminateParams enumerates the writes executed inside the termination
// transaction.
type TerminateParams struct {
	ClientID   string
	Notes      string
	OperatorID string
}

// TerminateResult reports what the transaction actually touched.
type TerminateResult struct {
	ClientUpdated    bool
	ContractsUpdated int64
	AuditRowID       int64
}

// Snapshot is a full dump of the customer tables, taken before any
// destructive write. Full-instance, not per-customer.
type Snapshot struct {
	TakenAt   time.Time  `json:"taken_at"`
	Clients   []Client   `json:"clients"`
	Contracts []Contract `json:"contracts"`
}
