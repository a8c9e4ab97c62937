// Package client talks to the backoffice API on behalf of operators: it downloads
// and uploads database backups and fetches reports.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultExportTimeout  = 60 * time.Second
	DefaultRestoreTimeout = 120 * time.Second
	DefaultReportTimeout  = 30 * time.Second

	ExportPath     = "/api/backup/database"
	RestorePath    = "/api/backup/restore"
	ProfitLossPath = "/api/reports/profit-loss"

	BackupFormField = "backup_file"

	maxErrorBody = 64 * 1024
)

// Config carries everything a client needs; nothing is read from ambient state.
type Config struct {
	BaseURL        string
	Token          string
	ExportTimeout  time.Duration
	RestoreTimeout time.Duration
	ReportTimeout  time.Duration
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	if c.RestoreTimeout <= 0 {
		c.RestoreTimeout = DefaultRestoreTimeout
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = DefaultReportTimeout
	}
	return c
}

func newRestyClient(cfg Config) *resty.Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetLogger(restyLogger{}).
		SetHeader("User-Agent", "backoffice-client")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	if cfg.Transport != nil {
		rc.SetTransport(cfg.Transport)
	}
	return rc
}

// restyLogger routes resty's diagnostics through zerolog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Msgf("client: "+format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Msgf("client: "+format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Msgf("client: "+format, v...)
}

// messageBody is the error shape shared by the backup and report endpoints.
type messageBody struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func parseMessage(body []byte) (messageBody, bool) {
	var msg messageBody
	if len(body) == 0 {
		return msg, false
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, false
	}
	return msg, true
}

func connectivityError(err error) error {
	return apperror.Wrap(err, apperror.KindConnectivity, apperror.MsgConnectivity)
}

// authorizationError maps 401 and 403 responses; forbiddenMessage is used for 403.
func authorizationError(status int, body []byte, forbiddenMessage string) error {
	message := forbiddenMessage
	if status == http.StatusUnauthorized {
		message = apperror.MsgAuthentication
		if msg, ok := parseMessage(body); ok && msg.Message != "" {
			message = msg.Message
		}
	}
	return apperror.New(apperror.KindAuthorization, message).WithStatus(status)
}

func statusErr(status int) error {
	return fmt.Errorf("unexpected status %d", status)
}
