package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBackupFilename is used when the server does not name the artifact.
const DefaultBackupFilename = "backup_database.sql"

// BackupArchive describes a backup kept in the configured archive destination.
type BackupArchive struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportResult is what a caller gets back after downloading a backup.
type ExportResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size"`
}

// RestoreResult mirrors the restore endpoint's response body.
type RestoreResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BackupFilename names a dump taken at the given instant, e.g.
// backup_database_20260118_093000.sql.
func BackupFilename(at time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "sql"
	}
	return fmt.Sprintf("backup_database_%s.%s", at.UTC().Format("20060102_150405"), ext)
}
