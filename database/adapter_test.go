package database

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"testex/config"
	"testex/termination"
)

type fakeRepo struct {
	client     Client
	clientErr  error
	active     int64
	result     TerminateResult
	terminated bool
	snapshot   Snapshot
	recorded   []string
}

func (f *fakeRepo) GetClient(context.Context, string) (Client, error) {
	return f.client, f.clientErr
}

func (f *fakeRepo) CountContractsByStatus(context.Context, string, string) (int64, error) {
	return f.active, nil
}

func (f *fakeRepo) Terminate(_ context.Context, params TerminateParams) (TerminateResult, error) {
	f.terminated = true
	return f.result, nil
}

func (f *fakeRepo) DumpAll(context.Context) (Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeRepo) RecordBackup(_ context.Context, clientID, path string, _ int64) error {
	f.recorded = append(f.recorded, path)
	return nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }

func newTestAdapter(repo repository, backupDir string) *Adapter {
	a := NewAdapter(config.Database{DSN: "postgres://unused", BackupDir: backupDir}, nil)
	a.repo = repo
	return a
}

func TestLookup_PresentClient(t *testing.T) {
	repo := &fakeRepo{
		client: Client{ID: "CLI001", Name: "Empresa ABC Ltda", Status: StatusActive},
		active: 2,
	}
	a := newTestAdapter(repo, "")

	found, summary, err := a.Lookup(context.Background(), "CLI001")
	if err != nil || !found {
		t.Fatalf("lookup = %t, %v", found, err)
	}
	if !strings.Contains(summary, "2 active contracts") {
		t.Errorf("summary = %q", summary)
	}
}

func TestLookup_AbsentClientIsNotAnError(t *testing.T) {
	a := newTestAdapter(&fakeRepo{clientErr: ErrClientNotFound}, "")

	found, summary, err := a.Lookup(context.Background(), "CLI999")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found || summary != "no client row found" {
		t.Errorf("found=%t summary=%q", found, summary)
	}
}

func TestMutate_Simulate(t *testing.T) {
	a := newTestAdapter(&fakeRepo{active: 2}, "")

	detail, err := a.Mutate(context.Background(), "CLI001", termination.Simulate)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if !strings.HasPrefix(detail, "SIMULATED") || !strings.Contains(detail, "2 active contracts") {
		t.Errorf("detail = %q", detail)
	}
}

func TestMutate_Apply(t *testing.T) {
	repo := &fakeRepo{result: TerminateResult{ClientUpdated: true, ContractsUpdated: 2}}
	a := newTestAdapter(repo, "")

	detail, err := a.Mutate(context.Background(), "CLI001", termination.Apply)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if detail != "client terminated, 2 contracts terminated" {
		t.Errorf("detail = %q", detail)
	}
	if !repo.terminated {
		t.Errorf("terminate not executed")
	}
}

func TestMutate_AlreadyTerminatedIsZeroCountSuccess(t *testing.T) {
	a := newTestAdapter(&fakeRepo{result: TerminateResult{}}, "")

	detail, err := a.Mutate(context.Background(), "CLI005", termination.Apply)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if !strings.Contains(detail, "nothing to update") {
		t.Errorf("detail = %q", detail)
	}
}

func TestBackup_WritesSnapshotAndRecordsIt(t *testing.T) {
	dir := t.TempDir()
	repo := &fakeRepo{snapshot: Snapshot{
		Clients:   []Client{{ID: "CLI001", Name: "Empresa ABC Ltda", Status: StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}},
		Contracts: []Contract{{ID: 1, ClientID: "CLI001", ContractNumber: "CONT-2024-001", Status: StatusActive}},
	}}
	a := newTestAdapter(repo, dir)

	if err := a.Backup(context.Background(), "CLI001"); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("backup not booked into backups table: %v", repo.recorded)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "db-snapshot-*.json.gz"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("snapshot files = %v, %v", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var snap Snapshot
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Clients) != 1 || snap.Clients[0].ID != "CLI001" || len(snap.Contracts) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.TakenAt.IsZero() {
		t.Errorf("snapshot missing taken_at")
	}
}

func TestBackup_RequiresConfiguredDir(t *testing.T) {
	a := newTestAdapter(&fakeRepo{}, "")
	if err := a.Backup(context.Background(), "CLI001"); err == nil {
		t.Fatalf("expected error without backup dir")
	}
}
