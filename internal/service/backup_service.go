package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-records/pkg/errors"
	"github.com/noah-isme/sma-records/pkg/jobs"
	"github.com/noah-isme/sma-records/pkg/storage"
)

type backupStore interface {
	Backup(ctx context.Context, dest string) error
}

type backupStorage interface {
	Path(name string) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	List() ([]storage.FileInfo, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// BackupJobType names scheduled backup jobs on the worker queue.
const BackupJobType = "backup"

// BackupConfig tunes backup retention.
type BackupConfig struct {
	Retention time.Duration
}

// BackupResult describes a written backup.
type BackupResult struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Pruned    []string  `json:"pruned,omitempty"`
}

// BackupService writes consistent database copies into the backup directory
// and prunes old ones.
type BackupService struct {
	store   backupStore
	storage backupStorage
	cfg     BackupConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewBackupService constructs a BackupService.
func NewBackupService(store backupStore, files backupStorage, cfg BackupConfig, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{store: store, storage: files, cfg: cfg, logger: logger, now: time.Now}
}

// BackupTo copies the store to an arbitrary destination path.
func (s *BackupService) BackupTo(ctx context.Context, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return appErrors.FieldInvalid("destination", "is required")
	}
	return s.store.Backup(ctx, dest)
}

// Create writes a backup named name inside the backup directory. An empty
// name gets a timestamped one. Backups older than the retention window are
// removed afterwards.
func (s *BackupService) Create(ctx context.Context, name string) (*BackupResult, error) {
	createdAt := s.now().UTC()
	if name == "" {
		name = fmt.Sprintf("school-%s.db", createdAt.Format("20060102T150405.000000000Z"))
	}
	if !storage.ValidName(name) {
		return nil, appErrors.FieldInvalid("name", "must be a plain file name")
	}
	path, err := s.storage.Path(name)
	if err != nil {
		return nil, appErrors.FieldInvalid("name", err.Error())
	}
	if _, err := os.Stat(path); err == nil {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrDuplicateID, fmt.Sprintf("backup %q already exists", name)), "name", name)
	}
	if err := s.store.Backup(ctx, path); err != nil {
		return nil, err
	}

	result := &BackupResult{Name: name, Path: path, CreatedAt: createdAt}
	if s.cfg.Retention > 0 {
		pruned, err := s.storage.CleanupOlderThan(s.cfg.Retention)
		if err != nil {
			s.logger.Warn("backup retention failed", zap.Error(err))
		} else {
			result.Pruned = pruned
		}
	}
	s.logger.Info("backup created", zap.String("name", name), zap.Int("pruned", len(result.Pruned)))
	return result, nil
}

// List returns stored backups, newest first.
func (s *BackupService) List() ([]storage.FileInfo, error) {
	files, err := s.storage.List()
	if err != nil {
		return nil, appErrors.StorageIO(err, "list backups")
	}
	return files, nil
}

// Open returns a handle to a stored backup.
func (s *BackupService) Open(name string) (*os.File, error) {
	if !storage.ValidName(name) {
		return nil, appErrors.FieldInvalid("name", "must be a plain file name")
	}
	file, err := s.storage.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.NotFound("backup", name)
		}
		return nil, appErrors.StorageIO(err, "open backup")
	}
	return file, nil
}

// Delete removes a stored backup.
func (s *BackupService) Delete(name string) error {
	if !storage.ValidName(name) {
		return appErrors.FieldInvalid("name", "must be a plain file name")
	}
	path, err := s.storage.Path(name)
	if err != nil {
		return appErrors.FieldInvalid("name", err.Error())
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return appErrors.NotFound("backup", name)
	}
	if err := s.storage.Delete(name); err != nil {
		return appErrors.StorageIO(err, "delete backup")
	}
	return nil
}

// RunJob is the queue handler for scheduled backups.
func (s *BackupService) RunJob(ctx context.Context, job jobs.Job) error {
	if job.Type != BackupJobType {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	result, err := s.Create(ctx, "")
	if err != nil {
		return err
	}
	s.logger.Info("scheduled backup written", zap.String("job_id", job.ID), zap.String("name", result.Name))
	return nil
}
