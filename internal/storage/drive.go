package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// DriveClient implements ObjectStorage on a Google Drive folder shared with a service
// account. Drive has no key hierarchy, so object keys are flattened to their base name.
type DriveClient struct {
	srv      *drive.Service
	folderID string
}

func NewDriveClient(ctx context.Context, cfg config.DriveConfig) (*DriveClient, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("drive credentials must be provided")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	c := &DriveClient{srv: srv, folderID: cfg.FolderID}
	if c.folderID == "" {
		folderID, err := c.findFolderByPath(ctx, cfg.FolderPath)
		if err != nil {
			return nil, err
		}
		c.folderID = folderID
	}
	return c, nil
}

func (c *DriveClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	namePrefix := driveNamePrefix(prefix)

	q := fmt.Sprintf("'%s' in parents and trashed=false and mimeType!='%s'", c.folderID, driveFolderMimeType)
	if namePrefix != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeDriveQuery(namePrefix))
	}

	results := make([]ObjectInfo, 0)
	err := c.srv.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, modifiedTime, size)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if !strings.HasPrefix(f.Name, namePrefix) {
					continue
				}
				modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
				results = append(results, ObjectInfo{Key: f.Name, Size: f.Size, LastModified: modified})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}
	return results, nil
}

func (c *DriveClient) DownloadObject(ctx context.Context, key, destPath string) error {
	fileID, err := c.findFile(ctx, driveName(key))
	if err != nil {
		return err
	}

	resp, err := c.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("unable to download file: %w", err)
	}
	defer resp.Body.Close()

	out, err := createDestination(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// UploadObject creates a new file; Drive allows duplicate names, the newest wins on download.
func (c *DriveClient) UploadObject(ctx context.Context, key string, r io.Reader, size int64) error {
	file := &drive.File{Name: driveName(key), Parents: []string{c.folderID}}
	if _, err := c.srv.Files.Create(file).Media(r).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to upload %s: %w", key, err)
	}
	return nil
}

func (c *DriveClient) findFile(ctx context.Context, name string) (string, error) {
	result, err := c.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", c.folderID, escapeDriveQuery(name))).
		OrderBy("modifiedTime desc").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("error finding file %s: %w", name, err)
	}
	if len(result.Files) == 0 {
		return "", fmt.Errorf("file not found: %s", name)
	}
	return result.Files[0].Id, nil
}

func (c *DriveClient) findFolderByPath(ctx context.Context, folderPath string) (string, error) {
	currentID := "root"

	for _, folder := range strings.Split(folderPath, "/") {
		if folder == "" {
			continue
		}

		result, err := c.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				currentID, escapeDriveQuery(folder), driveFolderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

var _ ObjectStorage = (*DriveClient)(nil)

func driveName(key string) string {
	return path.Base(key)
}

// driveNamePrefix keeps only the file-name part of a listing prefix; "backups/" lists
// everything in the folder.
func driveNamePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return ""
	}
	return path.Base(prefix)
}

func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
