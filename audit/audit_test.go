package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_WritesDatedJSONFile(t *testing.T) {
	dir := t.TempDir()
	sink := New(Options{Dir: dir})
	defer sink.Close()

	sink.Component("database").Info("phase complete", "detail", "2 contracts terminated")

	path := filepath.Join(dir, "testex-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line not JSON: %v\n%s", err, data)
	}
	if entry["component"] != "database" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["msg"] != "phase complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["detail"] != "2 contracts terminated" {
		t.Errorf("detail = %v", entry["detail"])
	}
	if _, ok := entry["time"]; !ok {
		t.Errorf("entry missing timestamp: %v", entry)
	}
}

func TestNew_MinLevelFilters(t *testing.T) {
	dir := t.TempDir()
	sink := New(Options{Dir: dir, MinLevel: slog.LevelWarn})
	defer sink.Close()

	log := sink.Component("orchestrator")
	log.Info("below threshold")
	log.Warn("at threshold")

	path := filepath.Join(dir, "testex-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line not JSON: %v", err)
	}
	if entry["msg"] != "at threshold" {
		t.Errorf("msg = %v, want only the warn entry", entry["msg"])
	}
}

func TestNew_UnusableDirDegradesToConsole(t *testing.T) {
	// A file standing where the directory should be makes MkdirAll fail.
	blocked := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := New(Options{Dir: filepath.Join(blocked, "logs")})
	defer sink.Close()

	// Must not panic or error; entries fall through to stderr.
	sink.Component("main").Error("sink unavailable")
}

func TestClose_WithoutFileIsNil(t *testing.T) {
	sink := New(Options{})
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
