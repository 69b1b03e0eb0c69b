package termination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCustomerID aborts a run before any phase executes.
var ErrInvalidCustomerID = errors.New("termination: invalid customer id")

// Adapter is the uniform contract each backend client exposes to the
// orchestrator. Connection handles live on the implementing struct, one
// set per run, so concurrent runs each carry their own context.
type Adapter interface {
	Name() string
	// Connect establishes and validates a session; the handle is reused by
	// the remaining calls for this run.
	Connect(ctx context.Context) error
	// Lookup reports whether the customer has any presence in this system.
	// Absence is a valid outcome, not an error.
	Lookup(ctx context.Context, customerID string) (found bool, summary string, err error)
	// Backup snapshots mutable state before a destructive mutate.
	Backup(ctx context.Context, customerID string) error
	// Mutate applies (or simulates) the termination and describes what it did.
	Mutate(ctx context.Context, customerID string, mode ExecutionMode) (detail string, err error)
	HealthCheck(ctx context.Context) error
	Close()
}

// Options tunes run-wide policy.
type Options struct {
	// SkipBackup disables the per-adapter backup step entirely.
	SkipBackup bool
	// BackupBlocking turns a backup failure into a phase failure. Default
	// is the historical best-effort behavior: log and proceed to mutate.
	BackupBlocking bool
}

// Orchestrator sequences the four adapters for one customer and aggregates
// the outcome. One instance per invocation.
type Orchestrator struct {
	database    Adapter
	directory   Adapter
	files       Adapter
	externalAPI Adapter
	opts        Options
	log         *slog.Logger
}

// NewOrchestrator wires the four adapters in their phase order. Any adapter
// may be nil only if the caller guarantees its phase is never selected.
func NewOrchestrator(database, directory, files, externalAPI Adapter, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		database:    database,
		directory:   directory,
		files:       files,
		externalAPI: externalAPI,
		opts:        opts,
		log:         log,
	}
}

// ValidateCustomerID rejects identifiers that cannot be safely interpolated
// into file paths and directory filters.
func ValidateCustomerID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCustomerID)
	}
	if strings.ContainsAny(id, "/\\ \t\n*()") {
		return fmt.Errorf("%w: %q", ErrInvalidCustomerID, id)
	}
	return nil
}

// Run executes every phase selected by scope, in order, and finalizes the
// report. Phase failures are isolated: they mark the phase and continue.
func (o *Orchestrator) Run(ctx context.Context, customerID string, scope Scope, mode ExecutionMode) (*Report, error) {
	if err := ValidateCustomerID(customerID); err != nil {
		return nil, err
	}
	if _, ok := ParseScope(string(scope)); !ok {
		return nil, fmt.Errorf("termination: unknown scope %q", scope)
	}

	report := &Report{
		RunID:      uuid.NewString(),
		CustomerID: customerID,
		Scope:      scope,
		Mode:       mode.String(),
		Errors:     []string{},
		StartedAt:  time.Now().UTC(),
	}

	o.log.Info("termination run starting",
		"run_id", report.RunID,
		"customer_id", customerID,
		"scope", scope,
		"mode", mode.String())

	phases := []struct {
		system  Scope
		adapter Adapter
		slot    *OperationOutcome
	}{
		{ScopeDatabase, o.database, &report.Database},
		{ScopeDirectory, o.directory, &report.Directory},
		{ScopeFiles, o.files, &report.Files},
		{ScopeExternalAPI, o.externalAPI, &report.ExternalAPI},
	}

	for _, p := range phases {
		if !scope.Includes(p.system) {
			continue
		}
		*p.slot = o.runPhase(ctx, p.adapter, customerID, mode, report)
	}

	o.finalize(report, scope)
	return report, nil
}

// runPhase drives one adapter through connect, lookup, backup, and mutate.
// Every error is converted into a failed outcome plus a report error entry;
// nothing escapes to abort sibling phases.
func (o *Orchestrator) runPhase(ctx context.Context, a Adapter, customerID string, mode ExecutionMode, report *Report) OperationOutcome {
	outcome := OperationOutcome{Attempted: true}
	log := o.log.With("adapter", a.Name(), "customer_id", customerID)

	if err := a.Connect(ctx); err != nil {
		outcome.Detail = fmt.Sprintf("connect: %v", err)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: connect: %v", a.Name(), err))
		log.Error("phase connect failed", "error", err)
		return outcome
	}
	defer a.Close()

	found, summary, err := a.Lookup(ctx, customerID)
	if err != nil {
		outcome.Detail = fmt.Sprintf("lookup: %v", err)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: lookup: %v", a.Name(), err))
		log.Error("phase lookup failed", "error", err)
		return outcome
	}
	if !found {
		outcome.Success = true
		outcome.Detail = summary
		log.Info("nothing to do", "detail", summary)
		return outcome
	}
	log.Info("customer present", "detail", summary)

	if mode == Apply && !o.opts.SkipBackup {
		if err := a.Backup(ctx, customerID); err != nil {
			log.Warn("backup failed", "error", err)
			if o.opts.BackupBlocking {
				outcome.Detail = fmt.Sprintf("backup: %v", err)
				report.Errors = append(report.Errors, fmt.Sprintf("%s: backup: %v", a.Name(), err))
				return outcome
			}
		} else {
			log.Info("backup complete")
		}
	}

	detail, err := a.Mutate(ctx, customerID, mode)
	if err != nil {
		outcome.Detail = fmt.Sprintf("mutate: %v", err)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: mutate: %v", a.Name(), err))
		log.Error("phase mutate failed", "error", err)
		return outcome
	}

	outcome.Success = true
	outcome.Detail = detail
	log.Info("phase complete", "detail", detail)
	return outcome
}

// finalize stamps timing and derives the classification over the selected
// subset only; out-of-scope adapters never count toward any bucket.
func (o *Orchestrator) finalize(report *Report, scope Scope) {
	report.FinishedAt = time.Now().UTC()
	report.Duration = report.FinishedAt.Sub(report.StartedAt).String()

	selected, succeeded := 0, 0
	for _, oc := range report.Outcomes() {
		if !oc.Attempted {
			continue
		}
		selected++
		if oc.Success {
			succeeded++
		}
	}

	switch {
	case selected > 0 && succeeded == selected && len(report.Errors) == 0:
		report.Classification = FullSuccess
	case succeeded == 0:
		report.Classification = TotalFailure
	default:
		report.Classification = PartialSuccess
	}

	o.log.Info("termination run finished",
		"run_id", report.RunID,
		"classification", report.Classification.String(),
		"duration", report.Duration,
		"errors", len(report.Errors))
}
