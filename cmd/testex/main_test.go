package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"testex/termination"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("TESTEX_CONFIG", "")
	if got := defaultConfigPath(); got != "testex.yaml" {
		t.Errorf("defaultConfigPath() = %q", got)
	}

	t.Setenv("TESTEX_CONFIG", "/etc/testex/prod.yaml")
	if got := defaultConfigPath(); got != "/etc/testex/prod.yaml" {
		t.Errorf("defaultConfigPath() = %q", got)
	}
}

func TestTerminate_RejectsInvalidCustomerIDBeforeConfig(t *testing.T) {
	cmd := newTerminateCmd()
	cmd.SetArgs([]string{"bad/id"})

	err := cmd.Execute()
	if !errors.Is(err, termination.ErrInvalidCustomerID) {
		t.Fatalf("error = %v, want ErrInvalidCustomerID", err)
	}
}

func TestTerminate_RejectsUnknownScope(t *testing.T) {
	cmd := newTerminateCmd()
	cmd.SetArgs([]string{"CLI001", "--scope", "everything"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown scope") {
		t.Fatalf("error = %v, want unknown scope", err)
	}
}

func TestTerminate_MissingConfigIsStartupError(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "absent.yaml")
	defer func() { configPath = defaultConfigPath() }()

	cmd := newTerminateCmd()
	cmd.SetArgs([]string{"CLI001"})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected startup error for missing config file")
	}
}
