package termination

import "time"

// Scope selects which backend systems a run touches.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeDatabase    Scope = "database"
	ScopeDirectory   Scope = "directory"
	ScopeFiles       Scope = "files"
	ScopeExternalAPI Scope = "uma"
)

// ParseScope maps a CLI argument onto a Scope.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeAll, ScopeDatabase, ScopeDirectory, ScopeFiles, ScopeExternalAPI:
		return Scope(s), true
	}
	return "", false
}

// Includes reports whether the named system is selected by this scope.
func (s Scope) Includes(system Scope) bool {
	return s == ScopeAll || s == system
}

// ExecutionMode is decided once per run and threaded through the run
// context; adapters must perform zero writes under Simulate.
type ExecutionMode int

const (
	Simulate ExecutionMode = iota
	Apply
)

func (m ExecutionMode) String() string {
	if m == Simulate {
		return "simulate"
	}
	return "apply"
}

// Classification is the three-way overall outcome callers branch on.
// Its integer value doubles as the process exit code.
type Classification int

const (
	FullSuccess    Classification = 0
	PartialSuccess Classification = 1
	TotalFailure   Classification = 2
)

func (c Classification) String() string {
	switch c {
	case FullSuccess:
		return "full success"
	case PartialSuccess:
		return "partial success"
	default:
		return "total failure"
	}
}

// OperationOutcome records one adapter's result within a run. The zero
// value means the adapter was outside the requested scope.
type OperationOutcome struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail"`
}

// Report aggregates a full orchestrator run. Immutable once exported.
type Report struct {
	RunID       string           `json:"run_id"`
	CustomerID  string           `json:"customer_id"`
	Scope       Scope            `json:"scope"`
	Mode        string           `json:"mode"`
	Database    OperationOutcome `json:"database"`
	Directory   OperationOutcome `json:"directory"`
	Files       OperationOutcome `json:"files"`
	ExternalAPI OperationOutcome `json:"external_api"`
	Errors      []string         `json:"errors"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Duration    string           `json:"duration"`

	Classification Classification `json:"classification"`
}

// Outcomes lists the per-adapter outcomes in phase order.
func (r *Report) Outcomes() []OperationOutcome {
	return []OperationOutcome{r.Database, r.Directory, r.Files, r.ExternalAPI}
}
