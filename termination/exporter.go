package termination

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Exporter persists one report per run under a configured directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Export writes the report as indented JSON to a uniquely named file,
// creating the directory if absent. The timestamp plus run id suffix
// guarantees a rerun for the same customer never overwrites a prior report.
func (e *Exporter) Export(report *Report) (string, error) {
	if e.dir == "" {
		return "", fmt.Errorf("termination: reports directory not configured")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("termination: create reports dir: %w", err)
	}

	name := fmt.Sprintf("termination-%s-%s-%s.json",
		report.CustomerID,
		report.StartedAt.Format("20060102-150405"),
		report.RunID[:8])
	path := filepath.Join(e.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("termination: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("termination: write report: %w", err)
	}
	return path, nil
}

// Summary renders the human-readable per-adapter lines printed after every
// run regardless of outcome.
func Summary(report *Report) string {
	line := func(name string, oc OperationOutcome) string {
		switch {
		case !oc.Attempted:
			return fmt.Sprintf("  %-12s skipped (out of scope)\n", name)
		case oc.Success:
			return fmt.Sprintf("  %-12s ok      %s\n", name, oc.Detail)
		default:
			return fmt.Sprintf("  %-12s FAILED  %s\n", name, oc.Detail)
		}
	}

	s := fmt.Sprintf("Termination of %s (%s, %s): %s in %s\n",
		report.CustomerID, report.Scope, report.Mode,
		report.Classification.String(), report.Duration)
	s += line("database", report.Database)
	s += line("directory", report.Directory)
	s += line("files", report.Files)
	s += line("uma", report.ExternalAPI)
	for _, e := range report.Errors {
		s += fmt.Sprintf("  error: %s\n", e)
	}
	return s
}
