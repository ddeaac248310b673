package rollback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNoBackup is returned when a restore is attempted with an empty backup
// slot. Restore never silently no-ops.
var ErrNoBackup = errors.New("rollback: no backup available")

// backupSlot is the reserved directory name inside the models dir. A single
// generation only: each backup overwrites the previous one.
const backupSlot = "backup"

// markerFile records which version the backup slot holds.
const markerFile = ".backup_version"

// #region pointer

// ActivePointer is the slice of the registry the manager repoints.
type ActivePointer interface {
	ActiveVersion() (string, error)
	SetActive(versionID string) error
}

// #endregion pointer

// #region manager

// Manager snapshots and restores model artifacts around an evolution cycle.
// All mutation happens inside the orchestrator's commit/rollback transitions,
// under the cycle's exclusivity.
type Manager struct {
	dir     string
	pointer ActivePointer
	logger  *zap.Logger
}

// NewManager creates a manager over the versioned artifact directory.
func NewManager(dir string, pointer ActivePointer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dir: dir, pointer: pointer, logger: logger}
}

// #endregion manager

// #region backup

// Backup copies the active version's artifact into the backup slot,
// overwriting whatever was there. An active version with no artifact on disk
// still records the slot so a later restore can repoint.
func (m *Manager) Backup() error {
	active, err := m.pointer.ActiveVersion()
	if err != nil {
		return fmt.Errorf("resolve active version: %w", err)
	}

	slot := filepath.Join(m.dir, backupSlot)
	if err := os.RemoveAll(slot); err != nil {
		return fmt.Errorf("clear backup slot: %w", err)
	}
	if err := os.MkdirAll(slot, 0o755); err != nil {
		return fmt.Errorf("create backup slot: %w", err)
	}

	src := filepath.Join(m.dir, active)
	if _, err := os.Stat(src); err == nil {
		if err := copyTree(src, slot); err != nil {
			return fmt.Errorf("copy artifact: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat artifact: %w", err)
	}

	if err := os.WriteFile(filepath.Join(slot, markerFile), []byte(active), 0o644); err != nil {
		return fmt.Errorf("write backup marker: %w", err)
	}

	m.logger.Info("model backed up", zap.String("version", active))
	return nil
}

// #endregion backup

// #region restore

// BackedUpVersion reports which version the backup slot holds, or ErrNoBackup.
func (m *Manager) BackedUpVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, backupSlot, markerFile))
	if os.IsNotExist(err) {
		return "", ErrNoBackup
	}
	if err != nil {
		return "", fmt.Errorf("read backup marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Restore copies the backup slot back over its version's artifact and
// repoints the active pointer at it. Fails loudly when the slot is empty.
func (m *Manager) Restore() error {
	version, err := m.BackedUpVersion()
	if err != nil {
		return err
	}

	dst := filepath.Join(m.dir, version)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := copyTree(filepath.Join(m.dir, backupSlot), dst); err != nil {
		return fmt.Errorf("copy backup: %w", err)
	}
	// The marker is slot bookkeeping, not part of the artifact.
	if err := os.Remove(filepath.Join(dst, markerFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker copy: %w", err)
	}

	if err := m.pointer.SetActive(version); err != nil {
		return fmt.Errorf("repoint active: %w", err)
	}

	m.logger.Info("model restored from backup", zap.String("version", version))
	return nil
}

// #endregion restore

// #region rollback-to

// RollbackTo repoints the active pointer at an explicit registered version,
// independent of the backup slot.
func (m *Manager) RollbackTo(versionID string) error {
	if err := m.pointer.SetActive(versionID); err != nil {
		return fmt.Errorf("rollback to %s: %w", versionID, err)
	}
	m.logger.Info("rolled back", zap.String("version", versionID))
	return nil
}

// #endregion rollback-to

// #region copy

// copyTree copies the file tree rooted at src into dst. Existing files in
// dst are overwritten; extra files in dst are left alone.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
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

// #endregion copy
