package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var dispositionFilenamePattern = regexp.MustCompile(`(?i)filename\*?=(?:UTF-8'')?"?([^";]+)"?`)

// BackupClient downloads and uploads whole-database backups. Each call is a single
// attempt; there are no retries and interrupted transfers are not resumed.
type BackupClient struct {
	http *resty.Client
	cfg  Config
}

func NewBackupClient(cfg Config) *BackupClient {
	cfg = cfg.withDefaults()
	return &BackupClient{http: newRestyClient(cfg), cfg: cfg}
}

// Export streams the server's dump into w.
func (c *BackupClient) Export(ctx context.Context, w io.Writer) (*domain.ExportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExportTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "application/octet-stream").
		Get(ExportPath)
	if err != nil {
		log.Warn().Err(err).Msg("client: backup export request failed")
		return nil, connectivityError(err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return nil, exportStatusError(resp.StatusCode(), data)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		log.Warn().Err(err).Int64("received", n).Msg("client: backup download interrupted")
		return nil, connectivityError(err)
	}

	filename := filenameFromDisposition(resp.Header().Get("Content-Disposition"))
	log.Info().Str("file", filename).Int64("size", n).Msg("client: backup downloaded")

	return &domain.ExportResult{Success: true, Filename: filename, Size: n}, nil
}

// ExportToDir saves the dump as dir/<server filename>. The file only appears once the
// download completed, and an existing file is never replaced: a numeric suffix is
// added instead.
func (c *BackupClient) ExportToDir(ctx context.Context, dir string) (*domain.ExportResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperror.Wrap(err, apperror.KindValidation, "cannot create output directory")
	}

	tmp, err := os.CreateTemp(dir, ".backup-*.part")
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindValidation, "cannot write to output directory")
	}
	tmpName := tmp.Name()

	result, err := c.Export(ctx, tmp)
	closeErr := tmp.Close()
	if err == nil && closeErr != nil {
		err = apperror.Wrap(closeErr, apperror.KindBackup, apperror.MsgBackupFailed)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return nil, err
	}

	dest, err := linkUnused(tmpName, dir, result.Filename)
	_ = os.Remove(tmpName)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindBackup, apperror.MsgBackupFailed)
	}

	result.Path = dest
	return result, nil
}

const maxFilenameSuffix = 1000

// linkUnused hard-links src as dir/name, or dir/name_N.ext when that is taken.
// os.Link fails on an existing target, so no file is overwritten.
func linkUnused(src, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxFilenameSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		dest := filepath.Join(dir, candidate)

		err := os.Link(src, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free filename for %s in %s", name, dir)
}

// Restore uploads r as the multipart field backup_file. A missing file is rejected
// before any request is made.
func (c *BackupClient) Restore(ctx context.Context, name string, r io.Reader) (*domain.RestoreResult, error) {
	if r == nil || strings.TrimSpace(name) == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.MsgMissingBackup)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RestoreTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader(BackupFormField, filepath.Base(name), r).
		Post(RestorePath)
	if err != nil {
		log.Warn().Err(err).Msg("client: restore request failed")
		return nil, connectivityError(err)
	}

	return restoreResult(resp.StatusCode(), resp.Body())
}

// RestoreFile uploads the local file at path.
func (c *BackupClient) RestoreFile(ctx context.Context, path string) (*domain.RestoreResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.MsgMissingBackup)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("path is a directory")
		}
		return nil, apperror.Wrap(err, apperror.KindValidation, apperror.MsgMissingBackup)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindValidation, apperror.MsgMissingBackup)
	}
	defer f.Close()

	return c.Restore(ctx, info.Name(), f)
}

func exportStatusError(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authorizationError(status, body, apperror.MsgAdminOnly)
	case status >= http.StatusInternalServerError:
		return apperror.Wrap(statusErr(status), apperror.KindServer, apperror.MsgServer).WithStatus(status)
	}

	if msg, ok := parseMessage(body); ok && msg.Message != "" {
		return apperror.Wrap(statusErr(status), apperror.KindBackup, msg.Message).WithStatus(status)
	}
	return apperror.Wrap(statusErr(status), apperror.KindBackup, apperror.MsgBackupFailed).WithStatus(status)
}

func restoreResult(status int, body []byte) (*domain.RestoreResult, error) {
	msg, parsed := parseMessage(body)

	message := apperror.MsgRestoreFailed
	if parsed && msg.Message != "" {
		message = msg.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, authorizationError(status, body, apperror.MsgAdminOnly)
	case status >= http.StatusInternalServerError:
		return nil, apperror.Wrap(statusErr(status), apperror.KindServer, message).WithStatus(status)
	case status == http.StatusBadRequest:
		return nil, apperror.Wrap(statusErr(status), apperror.KindValidation, message).WithStatus(status)
	case status < 200 || status > 299:
		return nil, apperror.Wrap(statusErr(status), apperror.KindBackup, message).WithStatus(status)
	}

	if !parsed || msg.Success == nil || !*msg.Success {
		return nil, apperror.New(apperror.KindBackup, message).WithStatus(status)
	}

	log.Info().Str("message", msg.Message).Msg("client: restore completed")
	return &domain.RestoreResult{Success: true, Message: msg.Message}, nil
}

// filenameFromDisposition extracts a safe base file name from a Content-Disposition
// header, falling back to backup_database.sql.
func filenameFromDisposition(header string) string {
	var name string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := dispositionFilenamePattern.FindStringSubmatch(header); m != nil {
			name = m[1]
		}
	}

	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == ".." || name == "/" {
		return domain.DefaultBackupFilename
	}
	return name
}
