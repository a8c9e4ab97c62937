package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage captures the minimal operations the backup archive needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, r io.Reader, size int64) error
}

// New builds the archive destination selected by BACKUP_ARCHIVE. It returns nil when
// archiving is disabled.
func New(ctx context.Context, cfg config.BackupConfig) (ObjectStorage, error) {
	switch cfg.Archive {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveMinio:
		client, err := NewMinioClient(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ArchiveDrive:
		client, err := NewDriveClient(ctx, cfg.Drive)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backup archive %q", cfg.Archive)
	}
}

func createDestination(destPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed creating %s: %w", destPath, err)
	}
	return f, nil
}
