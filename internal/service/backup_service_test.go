package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backupNow = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

func newTestBackupService(t *testing.T, dumper *fakeDumper, c *memoryCache, opts ...BackupOption) *BackupService {
	t.Helper()
	opts = append([]BackupOption{
		WithTempDir(t.TempDir()),
		WithBackupClock(func() time.Time { return backupNow }),
	}, opts...)
	if c == nil {
		return NewBackupService(dumper, nil, opts...)
	}
	return NewBackupService(dumper, c, opts...)
}

func TestBackupService_Export(t *testing.T) {
	archive := &memoryStorage{}
	dumper := &fakeDumper{payload: "COPY \"branches\" (\"id\") FROM stdin;\nb1\n\\.\n"}
	svc := newTestBackupService(t, dumper, newMemoryCache(), WithArchive(archive, "backups/"))

	file, err := svc.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backup_database_20261018_093000.sql", file.Name)
	assert.Equal(t, int64(len(dumper.payload)), file.Size)

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, dumper.payload, string(body))
	assert.Equal(t, dumper.payload, string(archive.objects["backups/backup_database_20261018_093000.sql"]))

	tmpName := file.ReadCloser.(*tempFile).Name()
	require.NoError(t, file.Close())
	_, err = os.Stat(tmpName)
	assert.True(t, os.IsNotExist(err))
}

func TestBackupService_ExportArchiveFailureIsNotFatal(t *testing.T) {
	archive := &memoryStorage{uploadErr: errors.New("bucket gone")}
	svc := newTestBackupService(t, &fakeDumper{payload: "data"}, nil, WithArchive(archive, ""))

	file, err := svc.Export(context.Background())
	require.NoError(t, err)
	defer file.Close()

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))
}

func TestBackupService_ExportDumpFailure(t *testing.T) {
	svc := newTestBackupService(t, &fakeDumper{dumpErr: errors.New("pg down")}, nil)

	file, err := svc.Export(context.Background())

	assert.Nil(t, file)
	assert.True(t, apperror.Is(err, apperror.KindBackup))
	assert.Equal(t, apperror.MsgBackupFailed, apperror.Message(err))
}

func TestBackupService_ExportWaitsForRunningJob(t *testing.T) {
	svc := newTestBackupService(t, &fakeDumper{payload: "data"}, nil)
	require.NoError(t, svc.sem.Acquire(context.Background(), 1))
	defer svc.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Export(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackupService_RestoreValidation(t *testing.T) {
	dumper := &fakeDumper{}
	svc := newTestBackupService(t, dumper, nil)

	cases := map[string]struct {
		name string
		r    io.Reader
	}{
		"nil reader":   {"backup.sql", nil},
		"missing name": {" ", strings.NewReader("data")},
		"empty file":   {"backup.sql", strings.NewReader("")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := svc.Restore(context.Background(), tc.name, tc.r)
			assert.Nil(t, result)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
			assert.Equal(t, apperror.MsgMissingBackup, apperror.Message(err))
		})
	}
	assert.Empty(t, dumper.restored)
}

func TestBackupService_Restore(t *testing.T) {
	dumper := &fakeDumper{}
	c := newMemoryCache()
	svc := newTestBackupService(t, dumper, c)

	result, err := svc.Restore(context.Background(), "backup.sql", strings.NewReader("payload"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, MsgRestoreSucceeded, result.Message)
	assert.Equal(t, []string{"payload"}, dumper.restored)
	assert.Equal(t, 1, c.invalidated)
}

func TestBackupService_RestoreFailure(t *testing.T) {
	c := newMemoryCache()
	svc := newTestBackupService(t, &fakeDumper{restErr: errors.New("bad section")}, c)

	_, err := svc.Restore(context.Background(), "backup.sql", strings.NewReader("junk"))

	assert.True(t, apperror.Is(err, apperror.KindBackup))
	assert.Equal(t, apperror.MsgRestoreFailed, apperror.Message(err))
	assert.Zero(t, c.invalidated)
}

func TestBackupService_ListArchives(t *testing.T) {
	older := backupNow.Add(-24 * time.Hour)
	archive := &memoryStorage{infos: []storage.ObjectInfo{
		{Key: "backups/backup_database_20261017_093000.sql", Size: 10, LastModified: older},
		{Key: "backups/backup_database_20261018_093000.sql", Size: 12, LastModified: backupNow},
		{Key: "other/readme.txt", Size: 1, LastModified: backupNow},
	}}
	svc := newTestBackupService(t, &fakeDumper{}, nil, WithArchive(archive, "backups/"))

	archives, err := svc.ListArchives(context.Background())
	require.NoError(t, err)
	require.Len(t, archives, 2)
	assert.Equal(t, "backup_database_20261018_093000.sql", archives[0].Name)
	assert.Equal(t, "backups/backup_database_20261018_093000.sql", archives[0].Key)
	assert.Equal(t, older, archives[1].CreatedAt)

	none := newTestBackupService(t, &fakeDumper{}, nil)
	archives, err = none.ListArchives(context.Background())
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestBackupService_RestoreArchive(t *testing.T) {
	archive := &memoryStorage{objects: map[string][]byte{
		"backups/backup_database_20261017_093000.sql": []byte("archived"),
	}}
	dumper := &fakeDumper{}
	svc := newTestBackupService(t, dumper, nil, WithArchive(archive, "backups/"))

	result, err := svc.RestoreArchive(context.Background(), "backup_database_20261017_093000.sql")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"archived"}, dumper.restored)

	_, err = svc.RestoreArchive(context.Background(), "../etc/passwd")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = svc.RestoreArchive(context.Background(), "missing.sql")
	assert.True(t, apperror.Is(err, apperror.KindBackup))

	disabled := newTestBackupService(t, dumper, nil)
	_, err = disabled.RestoreArchive(context.Background(), "backup.sql")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
