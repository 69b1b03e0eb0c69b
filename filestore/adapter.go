// Package filestore is the file-share adapter. Customer files are matched
// by filename substring under a configured root, copied into a timestamped
// backup directory before removal, and any residue left by failed removals
// is compressed into a single archive.
package filestore

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"testex/config"
	"testex/termination"
)

// RemovalResult reports per-file fates after a mutate.
type RemovalResult struct {
	Removed  []string
	Archived []string
	Failed   []string
}

type Adapter struct {
	cfg       config.Filestore
	log       *slog.Logger
	connected bool
	backupDir string
	now       func() time.Time
}

func NewAdapter(cfg config.Filestore, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, log: log, now: time.Now}
}

func (a *Adapter) Name() string { return "files" }

// Connect verifies the share root is reachable and readable.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.connected {
		return nil
	}
	info, err := os.Stat(a.cfg.Root)
	if err != nil {
		return fmt.Errorf("filestore: stat root %s: %w", a.cfg.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filestore: root %s is not a directory", a.cfg.Root)
	}
	a.connected = true
	return nil
}

func (a *Adapter) Close() {
	a.connected = false
	a.backupDir = ""
}

// Match walks the root and collects files whose basename contains the
// customer id. Substring on purpose: that is the share's tagging convention.
func (a *Adapter) Match(customerID string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(a.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), customerID) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: walk root: %w", err)
	}
	return matches, nil
}

func (a *Adapter) Lookup(ctx context.Context, customerID string) (bool, string, error) {
	matches, err := a.Match(customerID)
	if err != nil {
		return false, "", err
	}
	return len(matches) > 0, fmt.Sprintf("%d files found", len(matches)), nil
}

// Backup copies every matched file into a fresh timestamped directory. The
// copy must complete before any removal is attempted.
func (a *Adapter) Backup(ctx context.Context, customerID string) error {
	if a.cfg.BackupDir == "" {
		return fmt.Errorf("filestore: backup dir not configured")
	}
	matches, err := a.Match(customerID)
	if err != nil {
		return err
	}

	dest := filepath.Join(a.cfg.BackupDir, fmt.Sprintf("%s-%s", customerID, a.now().UTC().Format("20060102-150405")))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("filestore: create backup dir: %w", err)
	}

	for _, src := range matches {
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return fmt.Errorf("filestore: backup %s: %w", src, err)
		}
	}
	a.backupDir = dest
	a.log.Info("files backed up", "count", len(matches), "dest", dest)
	return nil
}

// Mutate removes matched files. Files that fail to remove are zipped into a
// single residue archive rather than left loose.
func (a *Adapter) Mutate(ctx context.Context, customerID string, mode termination.ExecutionMode) (string, error) {
	matches, err := a.Match(customerID)
	if err != nil {
		return "", err
	}

	if mode == termination.Simulate {
		return fmt.Sprintf("SIMULATED: would remove %d files", len(matches)), nil
	}

	var result RemovalResult
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			a.log.Warn("file removal failed", "path", path, "error", err)
			result.Failed = append(result.Failed, path)
			continue
		}
		result.Removed = append(result.Removed, path)
	}

	if len(result.Failed) > 0 {
		archive, archived, err := a.archiveResidue(customerID, result.Failed)
		if err != nil {
			return "", err
		}
		result.Archived = archived
		a.log.Info("residual files archived", "archive", archive, "count", len(archived))
	}

	return fmt.Sprintf("%d files removed, %d archived, %d failed",
		len(result.Removed), len(result.Archived), len(result.Failed)), nil
}

// archiveResidue zips what could not be removed, then retries the removal
// of each successfully archived original.
func (a *Adapter) archiveResidue(customerID string, residue []string) (string, []string, error) {
	dir := a.cfg.BackupDir
	if dir == "" {
		dir = a.cfg.Root
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("filestore: create archive dir: %w", err)
	}
	archivePath := filepath.Join(dir, fmt.Sprintf("%s-residue-%s.zip", customerID, a.now().UTC().Format("20060102-150405")))

	f, err := os.Create(archivePath)
	if err != nil {
		return "", nil, fmt.Errorf("filestore: create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	var archived []string
	for _, path := range residue {
		if err := addToZip(zw, path); err != nil {
			a.log.Warn("residue archive entry failed", "path", path, "error", err)
			continue
		}
		archived = append(archived, path)
	}
	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("filestore: close archive: %w", err)
	}

	for _, path := range archived {
		_ = os.Remove(path)
	}
	return archivePath, archived, nil
}

func addToZip(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// HealthCheck probes that the root exists and is listable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	if _, err := os.ReadDir(a.cfg.Root); err != nil {
		return fmt.Errorf("filestore: health check: %w", err)
	}
	return nil
}

var _ termination.Adapter = (*Adapter)(nil)
