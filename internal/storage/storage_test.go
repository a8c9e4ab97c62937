package storage

import (
	"context"
	"testing"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		useSSL   bool
		endpoint string
		secure   bool
	}{
		{"https://s3.example.com/", false, "s3.example.com", true},
		{"http://minio:9000", true, "minio:9000", false},
		{"minio:9000", true, "minio:9000", true},
		{"//minio:9000", false, "minio:9000", false},
	}

	for _, tt := range tests {
		endpoint, secure := normalizeEndpoint(tt.in, tt.useSSL)
		assert.Equal(t, tt.endpoint, endpoint, tt.in)
		assert.Equal(t, tt.secure, secure, tt.in)
	}
}

func TestDriveNames(t *testing.T) {
	assert.Equal(t, "backup_database_20261018_090000.sql", driveName("backups/backup_database_20261018_090000.sql"))
	assert.Equal(t, "", driveNamePrefix("backups/"))
	assert.Equal(t, "", driveNamePrefix(""))
	assert.Equal(t, "backup_database_2026", driveNamePrefix("backups/backup_database_2026"))
	assert.Equal(t, `it\'s`, escapeDriveQuery("it's"))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.BackupConfig{Archive: config.ArchiveNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(ctx, config.BackupConfig{Archive: "ftp"})
	assert.Error(t, err)

	_, err = New(ctx, config.BackupConfig{Archive: config.ArchiveMinio})
	assert.ErrorContains(t, err, "endpoint")

	_, err = New(ctx, config.BackupConfig{Archive: config.ArchiveDrive})
	assert.ErrorContains(t, err, "credentials")
}
