package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/andresuchdata/backoffice/backend-go/internal/api/middleware"
	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// BackupFormField is the multipart field carrying the dump on restore.
const BackupFormField = "backup_file"

// BackupManager is implemented by service.BackupService.
type BackupManager interface {
	Export(ctx context.Context) (*service.BackupFile, error)
	Restore(ctx context.Context, name string, r io.Reader) (*domain.RestoreResult, error)
	ListArchives(ctx context.Context) ([]domain.BackupArchive, error)
	RestoreArchive(ctx context.Context, name string) (*domain.RestoreResult, error)
}

type BackupHandler struct {
	service BackupManager
}

func NewBackupHandler(service BackupManager) *BackupHandler {
	return &BackupHandler{service: service}
}

// ExportDatabase handles GET /api/backup/database
func (h *BackupHandler) ExportDatabase(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context())
	if err != nil {
		backupError(c, err)
		return
	}
	defer file.Close()

	principal, _ := middleware.PrincipalFrom(c)
	log.Info().
		Str("request_id", middleware.RequestIDFrom(c)).
		Str("user_id", principal.UserID).
		Str("file", file.Name).
		Msg("backup: sending export")

	c.DataFromReader(http.StatusOK, file.Size, "application/octet-stream", file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.Name),
	})
}

// RestoreDatabase handles POST /api/backup/restore
func (h *BackupHandler) RestoreDatabase(c *gin.Context) {
	header, err := c.FormFile(BackupFormField)
	if err != nil {
		backupError(c, apperror.Wrap(err, apperror.KindValidation, apperror.MsgMissingBackup))
		return
	}

	f, err := header.Open()
	if err != nil {
		backupError(c, apperror.Wrap(err, apperror.KindBackup, apperror.MsgRestoreFailed))
		return
	}
	defer f.Close()

	principal, _ := middleware.PrincipalFrom(c)
	log.Info().
		Str("request_id", middleware.RequestIDFrom(c)).
		Str("user_id", principal.UserID).
		Str("file", header.Filename).
		Int64("size", header.Size).
		Msg("backup: restore requested")

	result, err := h.service.Restore(c.Request.Context(), header.Filename, f)
	if err != nil {
		backupError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListArchives handles GET /api/backup/archives
func (h *BackupHandler) ListArchives(c *gin.Context) {
	archives, err := h.service.ListArchives(c.Request.Context())
	if err != nil {
		backupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    archives,
	})
}

// RestoreArchive handles POST /api/backup/archives/:name/restore
func (h *BackupHandler) RestoreArchive(c *gin.Context) {
	result, err := h.service.RestoreArchive(c.Request.Context(), c.Param("name"))
	if err != nil {
		backupError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func backupError(c *gin.Context, err error) {
	log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("backup: request failed")
	c.JSON(apperror.HTTPStatus(err), gin.H{
		"success": false,
		"message": apperror.Message(err),
	})
}
