// Package config implements the file-backed config store for the scoreboard's
// canonical configuration document.
//
// Exactly one canonical copy exists on disk at any time. Commits follow
// write-temp, fsync, rename, fsync-dir discipline so a crash at any point
// leaves either the old or the new document, never a partial one.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
	"scorehub.io/cli/internal/core/schema"
	"scorehub.io/cli/internal/infrastructure/atomicfile"
)

// FileStore is the on-disk ports.ConfigStore. Safe for concurrent use; the
// orchestrator's transaction lock serializes writers, readers only ever see
// the canonical file.
type FileStore struct {
	path    string
	backups bool
	logger  hclog.Logger
}

var _ ports.ConfigStore = (*FileStore)(nil)

// NewFileStore creates a store around the canonical document at path.
// Backups of the replaced document are kept on every commit, matching the
// hub's long-standing save behavior.
func NewFileStore(path string, logger hclog.Logger) *FileStore {
	return &FileStore{
		path:    path,
		backups: true,
		logger:  logger.Named("config-store"),
	}
}

// WithBackups toggles timestamped .bak copies on commit. Tests turn them off.
func (s *FileStore) WithBackups(enabled bool) *FileStore {
	s.backups = enabled
	return s
}

// CanonicalPath returns the canonical document's location.
func (s *FileStore) CanonicalPath() string { return s.path }

// Read returns the canonical document, or domain.ErrStoreUnavailable when the
// file is missing or not parseable.
func (s *FileStore) Read() (domain.ConfigDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ConfigDocument{}, fmt.Errorf("%w: %s does not exist", domain.ErrStoreUnavailable, s.path)
		}
		return domain.ConfigDocument{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	doc, err := domain.ParseDocument(data)
	if err != nil {
		return domain.ConfigDocument{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return doc, nil
}

// Seed writes an initial canonical document. It refuses to clobber an
// existing readable document.
func (s *FileStore) Seed(doc domain.ConfigDocument) error {
	if _, err := s.Read(); err == nil {
		return fmt.Errorf("refusing to seed: canonical document already exists at %s", s.path)
	} else if !errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	s.logger.Info("seeding canonical config", "path", s.path)
	return atomicfile.Write(s.path, doc.Bytes(), 0o644)
}

// Validate checks the candidate against the effective schema. Pure.
func (s *FileStore) Validate(candidate domain.ConfigDocument, effective *schema.Schema) error {
	return schema.Validate(candidate, effective)
}

// Stage writes the candidate next to the canonical file under a unique name.
// Concurrent stages produce independent handles; Read is unaffected.
func (s *FileStore) Stage(candidate domain.ConfigDocument) (ports.StagedHandle, error) {
	base, err := s.canonicalChecksum()
	if err != nil {
		return ports.StagedHandle{}, err
	}
	id := uuid.NewString()
	stagedPath := fmt.Sprintf("%s.staged.%s", s.path, id)
	if err := os.MkdirAll(filepath.Dir(stagedPath), 0o755); err != nil {
		return ports.StagedHandle{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.WriteFile(stagedPath, candidate.Bytes(), 0o644); err != nil {
		return ports.StagedHandle{}, fmt.Errorf("failed to write staged document: %w", err)
	}
	s.logger.Debug("staged candidate document", "handle", id, "path", stagedPath)
	return ports.StagedHandle{ID: id, Path: stagedPath, BaseChecksum: base}, nil
}

// Commit atomically replaces the canonical document with the staged one. A
// handle whose base checksum no longer matches the canonical file fails with
// domain.ErrStaleStage and must be retried from a fresh read.
func (s *FileStore) Commit(handle ports.StagedHandle) error {
	current, err := s.canonicalChecksum()
	if err != nil {
		return err
	}
	if current != handle.BaseChecksum {
		return fmt.Errorf("%w: canonical document changed since stage %s", domain.ErrStaleStage, handle.ID)
	}

	staged, err := os.ReadFile(handle.Path)
	if err != nil {
		return fmt.Errorf("failed to read staged document %s: %w", handle.ID, err)
	}

	if s.backups {
		if err := s.backupCanonical(); err != nil {
			return err
		}
	}
	if err := atomicfile.Write(s.path, staged, 0o644); err != nil {
		return err
	}
	s.logger.Info("committed config document", "handle", handle.ID)
	s.Discard(handle)
	return nil
}

// Discard removes the staged copy. A failed remove is logged, never fatal.
func (s *FileStore) Discard(handle ports.StagedHandle) {
	if handle.Path == "" {
		return
	}
	if err := os.Remove(handle.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove staged document", "handle", handle.ID, "error", err)
	}
}

func (s *FileStore) canonicalChecksum() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No canonical file yet; stage against the empty state.
			return "", nil
		}
		return "", fmt.Errorf("failed to read canonical document: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *FileStore) backupCanonical() error {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat canonical document: %w", err)
	}
	backup := fmt.Sprintf("%s.%s.bak", s.path, time.Now().Format("20060102150405"))
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read canonical document for backup: %w", err)
	}
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}
	s.logger.Debug("backed up canonical config", "path", backup)
	return nil
}

