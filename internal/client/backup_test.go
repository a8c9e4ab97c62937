package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

const dumpPayload = "COPY \"branches\" (\"id\", \"name\") FROM stdin;\nb1\tPusat\n\\.\n"

type fakeAPI struct {
	server   *httptest.Server
	hits     int32
	auth     atomic.Value
	exportFn http.HandlerFunc
	restore  http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&api.hits, 1)
			api.auth.Store(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r)
		})
	})
	router.HandleFunc(ExportPath, func(w http.ResponseWriter, r *http.Request) {
		api.exportFn(w, r)
	}).Methods(http.MethodGet)
	router.HandleFunc(RestorePath, func(w http.ResponseWriter, r *http.Request) {
		api.restore(w, r)
	}).Methods(http.MethodPost)

	api.server = httptest.NewServer(router)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) client(timeouts ...time.Duration) *BackupClient {
	cfg := Config{BaseURL: a.server.URL, Token: testToken}
	if len(timeouts) > 0 {
		cfg.ExportTimeout = timeouts[0]
		cfg.RestoreTimeout = timeouts[0]
	}
	return NewBackupClient(cfg)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://backoffice.local/ "}.withDefaults()

	assert.Equal(t, "http://backoffice.local", cfg.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.ExportTimeout)
	assert.Equal(t, 120*time.Second, cfg.RestoreTimeout)
	assert.Equal(t, DefaultBaseURL, Config{}.withDefaults().BaseURL)
}

func TestExport(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="backup_database_20261018_093000.sql"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, dumpPayload)
	}

	var buf bytes.Buffer
	result, err := api.client().Export(context.Background(), &buf)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "backup_database_20261018_093000.sql", result.Filename)
	assert.Equal(t, int64(len(dumpPayload)), result.Size)
	assert.Equal(t, dumpPayload, buf.String())
	assert.Equal(t, "Bearer "+testToken, api.auth.Load())
}

func TestExport_DefaultFilename(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, dumpPayload)
	}

	result, err := api.client().Export(context.Background(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBackupFilename, result.Filename)
}

func TestExport_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apperror.Kind
		message string
	}{
		{"forbidden", http.StatusForbidden, `{"success":false,"message":"nope"}`, apperror.KindAuthorization, apperror.MsgAdminOnly},
		{"server error", http.StatusInternalServerError, `{"success":false,"message":"pg_dump crashed"}`, apperror.KindServer, apperror.MsgServer},
		{"json message", http.StatusConflict, `{"success":false,"message":"backup already running"}`, apperror.KindBackup, "backup already running"},
		{"opaque body", http.StatusTeapot, "\x00\x01binary", apperror.KindBackup, apperror.MsgBackupFailed},
		{"unauthenticated", http.StatusUnauthorized, ``, apperror.KindAuthorization, apperror.MsgAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.exportFn = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}

			var buf bytes.Buffer
			result, err := api.client().Export(context.Background(), &buf)

			assert.Nil(t, result)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Equal(t, tt.message, apperror.Message(err))
			assert.Zero(t, buf.Len(), "error bodies are never written to the destination")
		})
	}
}

func TestExport_NoResponse(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client()
	api.server.Close()

	_, err := c.Export(context.Background(), io.Discard)

	assert.True(t, apperror.Is(err, apperror.KindConnectivity))
	assert.Equal(t, apperror.MsgConnectivity, apperror.Message(err))
}

func TestExport_Timeout(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}

	_, err := api.client(50*time.Millisecond).Export(context.Background(), io.Discard)
	assert.True(t, apperror.Is(err, apperror.KindConnectivity))
}

func TestExportToDir(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../etc/backup_database_x.sql"`)
		_, _ = io.WriteString(w, dumpPayload)
	}
	dir := t.TempDir()

	result, err := api.client().ExportToDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "backup_database_x.sql"), result.Path)
	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, dumpPayload, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed, not left behind")
}

func TestExportToDir_KeepsExistingFile(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, dumpPayload)
	}
	dir := t.TempDir()
	existing := filepath.Join(dir, domain.DefaultBackupFilename)
	require.NoError(t, os.WriteFile(existing, []byte("older dump"), 0o600))

	first, err := api.client().ExportToDir(context.Background(), dir)
	require.NoError(t, err)
	second, err := api.client().ExportToDir(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "backup_database_1.sql"), first.Path)
	assert.Equal(t, filepath.Join(dir, "backup_database_2.sql"), second.Path)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "older dump", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestExportToDir_FailureLeavesNothing(t *testing.T) {
	api := newFakeAPI(t)
	api.exportFn = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}
	dir := t.TempDir()

	_, err := api.client().ExportToDir(context.Background(), dir)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRestore(t *testing.T) {
	api := newFakeAPI(t)
	var gotName, gotBody string
	api.restore = func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile(BackupFormField)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": apperror.MsgMissingBackup})
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName, gotBody = header.Filename, string(data)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "database restored successfully"})
	}

	result, err := api.client().Restore(context.Background(), "/tmp/backup_database_20261018_093000.sql", strings.NewReader(dumpPayload))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "database restored successfully", result.Message)
	assert.Equal(t, "backup_database_20261018_093000.sql", gotName)
	assert.Equal(t, dumpPayload, gotBody)
	assert.Equal(t, "Bearer "+testToken, api.auth.Load())
}

func TestRestore_MissingFileMakesNoRequest(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client()

	_, err := c.Restore(context.Background(), "backup.sql", nil)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, apperror.MsgMissingBackup, apperror.Message(err))

	_, err = c.Restore(context.Background(), "", strings.NewReader("x"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = c.RestoreFile(context.Background(), filepath.Join(t.TempDir(), "missing.sql"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = c.RestoreFile(context.Background(), t.TempDir())
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	assert.Zero(t, atomic.LoadInt32(&api.hits))
}

func TestRestore_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apperror.Kind
		message string
	}{
		{"success false", http.StatusOK, `{"success":false,"message":"nothing restored"}`, apperror.KindBackup, "nothing restored"},
		{"missing success flag", http.StatusOK, `{"message":"ok?"}`, apperror.KindBackup, "ok?"},
		{"not json", http.StatusOK, `<html>`, apperror.KindBackup, apperror.MsgRestoreFailed},
		{"forbidden", http.StatusForbidden, `{"success":false,"message":"x"}`, apperror.KindAuthorization, apperror.MsgAdminOnly},
		{"validation", http.StatusBadRequest, `{"success":false,"message":"select a backup file to restore"}`, apperror.KindValidation, apperror.MsgMissingBackup},
		{"server message", http.StatusInternalServerError, `{"success":false,"message":"failed to restore database"}`, apperror.KindServer, apperror.MsgRestoreFailed},
		{"gateway", http.StatusBadGateway, ``, apperror.KindServer, apperror.MsgRestoreFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.restore = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}

			result, err := api.client().Restore(context.Background(), "backup.sql", strings.NewReader(dumpPayload))

			assert.Nil(t, result)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Equal(t, tt.message, apperror.Message(err))
		})
	}
}

func TestRestoreFile(t *testing.T) {
	api := newFakeAPI(t)
	api.restore = func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile(BackupFormField)
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": header.Filename})
	}

	path := filepath.Join(t.TempDir(), "nightly.sql")
	require.NoError(t, os.WriteFile(path, []byte(dumpPayload), 0o600))

	result, err := api.client().RestoreFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "nightly.sql", result.Message)
}

func TestFilenameFromDisposition(t *testing.T) {
	tests := map[string]string{
		``:                                          domain.DefaultBackupFilename,
		`attachment`:                                domain.DefaultBackupFilename,
		`attachment; filename="dump.sql"`:           "dump.sql",
		`attachment; filename=dump.sql`:             "dump.sql",
		`attachment; filename*=UTF-8''dump%20a.sql`: "dump a.sql",
		`attachment; filename="..\\..\\evil.sql"`:   "evil.sql",
		`attachment; filename=".."`:                 domain.DefaultBackupFilename,
	}
	for header, want := range tests {
		assert.Equal(t, want, filenameFromDisposition(header), header)
	}
}
