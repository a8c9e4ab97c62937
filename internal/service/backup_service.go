package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/cache"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository"
	"github.com/andresuchdata/backoffice/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	MsgRestoreSucceeded    = "database restored successfully"
	MsgArchiveDisabled     = "backup archive is not configured"
	MsgInvalidArchiveName  = "invalid backup archive name"
	msgBackupInProgressLog = "backup: waiting for running backup or restore cancelled"
)

// BackupFile is a finished dump. Closing it removes the underlying temporary file.
type BackupFile struct {
	Name string
	Size int64
	io.ReadCloser
}

type tempFile struct {
	*os.File
}

func (f *tempFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.File.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return errors.Join(err, rmErr)
	}
	return err
}

// BackupService produces and loads full database dumps. Only one dump or restore
// runs at a time.
type BackupService struct {
	dumper  repository.Dumper
	cache   cache.ProfitLossCache
	archive storage.ObjectStorage
	prefix  string
	tempDir string
	sem     *semaphore.Weighted
	now     func() time.Time
}

type BackupOption func(*BackupService)

// WithArchive uploads every export to archive under prefix.
func WithArchive(archive storage.ObjectStorage, prefix string) BackupOption {
	return func(s *BackupService) {
		s.archive = archive
		s.prefix = prefix
	}
}

func WithTempDir(dir string) BackupOption {
	return func(s *BackupService) {
		s.tempDir = dir
	}
}

func WithBackupClock(now func() time.Time) BackupOption {
	return func(s *BackupService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewBackupService(dumper repository.Dumper, cacheImpl cache.ProfitLossCache, opts ...BackupOption) *BackupService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopProfitLossCache()
	}
	s := &BackupService{
		dumper: dumper,
		cache:  cacheImpl,
		sem:    semaphore.NewWeighted(1),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export dumps the database into a temporary file and returns it rewound. When an
// archive is configured the dump is uploaded too; an upload failure does not fail
// the export.
func (s *BackupService) Export(ctx context.Context) (*BackupFile, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Warn().Err(err).Msg(msgBackupInProgressLog)
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgBackupFailed)
	}
	defer s.sem.Release(1)

	start := time.Now()
	name := domain.BackupFilename(s.now(), s.dumper.Extension())

	tmp, err := os.CreateTemp(s.tempDir, "backup-*."+s.dumper.Extension())
	if err != nil {
		return nil, apperror.Wrap(fmt.Errorf("create temp file: %w", err), apperror.KindBackup, apperror.MsgBackupFailed)
	}
	file := &tempFile{File: tmp}

	fail := func(err error) (*BackupFile, error) {
		_ = file.Close()
		log.Error().Err(err).Str("file", name).Msg("backup: export failed")
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgBackupFailed)
	}

	if err := s.dumper.Dump(ctx, tmp); err != nil {
		return fail(err)
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return fail(err)
	}

	if s.archive != nil {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fail(err)
		}
		key := s.prefix + name
		if err := s.archive.UploadObject(ctx, key, tmp, size); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("backup: archive upload failed")
		} else {
			log.Info().Str("key", key).Msg("backup: archived")
		}
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}

	log.Info().Str("file", name).Int64("size", size).Dur("took", time.Since(start)).Msg("backup: export completed")
	return &BackupFile{Name: name, Size: size, ReadCloser: file}, nil
}

// Restore replaces the database contents with the dump read from r. A missing or
// empty file is rejected before anything is touched.
func (s *BackupService) Restore(ctx context.Context, name string, r io.Reader) (*domain.RestoreResult, error) {
	if r == nil || strings.TrimSpace(name) == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.MsgMissingBackup)
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.New(apperror.KindValidation, apperror.MsgMissingBackup)
		}
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Warn().Err(err).Msg(msgBackupInProgressLog)
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}
	defer s.sem.Release(1)

	start := time.Now()
	if err := s.dumper.Restore(ctx, br); err != nil {
		log.Error().Err(err).Str("file", name).Msg("backup: restore failed")
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}

	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("backup: report cache invalidation failed")
	}

	log.Info().Str("file", name).Dur("took", time.Since(start)).Msg("backup: restore completed")
	return &domain.RestoreResult{Success: true, Message: MsgRestoreSucceeded}, nil
}

// ListArchives returns archived backups, newest first.
func (s *BackupService) ListArchives(ctx context.Context) ([]domain.BackupArchive, error) {
	archives := make([]domain.BackupArchive, 0)
	if s.archive == nil {
		return archives, nil
	}

	objects, err := s.archive.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindBackup, "failed to list backup archives")
	}

	for _, obj := range objects {
		archives = append(archives, domain.BackupArchive{
			Name:      path.Base(obj.Key),
			Key:       obj.Key,
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}
	sort.SliceStable(archives, func(i, j int) bool {
		if archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].Name > archives[j].Name
		}
		return archives[i].CreatedAt.After(archives[j].CreatedAt)
	})

	return archives, nil
}

// RestoreArchive downloads an archived backup by name and restores it.
func (s *BackupService) RestoreArchive(ctx context.Context, name string) (*domain.RestoreResult, error) {
	if s.archive == nil {
		return nil, apperror.New(apperror.KindValidation, MsgArchiveDisabled)
	}
	name = strings.TrimSpace(name)
	if name == "" || name != path.Base(name) || name == "." || name == ".." {
		return nil, apperror.New(apperror.KindValidation, MsgInvalidArchiveName)
	}

	dir, err := os.MkdirTemp(s.tempDir, "archive-*")
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, name)
	if err := s.archive.DownloadObject(ctx, s.prefix+name, local); err != nil {
		log.Error().Err(err).Str("name", name).Msg("backup: archive download failed")
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed)
	}
	defer f.Close()

	return s.Restore(ctx, name, f)
}
