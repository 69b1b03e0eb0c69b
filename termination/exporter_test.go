package termination

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleReport() *Report {
	return &Report{
		RunID:      "0f8fad5b-d9cb-469f-a165-70867728950e",
		CustomerID: "CLI001",
		Scope:      ScopeAll,
		Mode:       "apply",
		Database:   OperationOutcome{Attempted: true, Success: true, Detail: "client terminated, 2 contracts terminated"},
		Directory:  OperationOutcome{Attempted: true, Success: true, Detail: "0 users, 0 groups found"},
		Files:      OperationOutcome{Attempted: true, Success: true, Detail: "0 files found"},
		ExternalAPI: OperationOutcome{
			Attempted: true, Success: true, Detail: "2 services removed, client disabled",
		},
		Errors:         []string{},
		StartedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 6, 1, 12, 0, 3, 0, time.UTC),
		Duration:       "3s",
		Classification: FullSuccess,
	}
}

func TestExport_WritesUniqueReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	exporter := NewExporter(dir)

	report := sampleReport()
	path, err := exporter.Export(report)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report written to %s, want under %s", path, dir)
	}
	if !strings.Contains(filepath.Base(path), "CLI001") {
		t.Errorf("report name %s missing customer id", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.CustomerID != "CLI001" || decoded.Classification != FullSuccess {
		t.Errorf("decoded report = %+v", decoded)
	}

	// A second run for the same customer must never overwrite the first.
	other := sampleReport()
	other.RunID = "11111111-2222-3333-4444-555555555555"
	path2, err := exporter.Export(other)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if path2 == path {
		t.Errorf("second export reused path %s", path)
	}
}

func TestExport_FailsWithoutDirectory(t *testing.T) {
	exporter := NewExporter("")
	if _, err := exporter.Export(sampleReport()); err == nil {
		t.Fatalf("expected error for unconfigured reports dir")
	}
}

func TestSummary(t *testing.T) {
	report := sampleReport()
	report.Directory = OperationOutcome{}
	report.Files = OperationOutcome{Attempted: true, Success: false, Detail: "connect: share down"}
	report.Errors = []string{"files: connect: share down"}
	report.Classification = PartialSuccess

	s := Summary(report)
	for _, want := range []string{
		"partial success",
		"skipped (out of scope)",
		"FAILED  connect: share down",
		"2 services removed, client disabled",
		"error: files: connect: share down",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
