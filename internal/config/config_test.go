package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := newConfig(v)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, ArchiveNone, cfg.Backup.Archive)
	assert.Equal(t, 60, cfg.Cache.ReportTTLSeconds)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 6, cfg.Backup.RatePerMinute)
	assert.Equal(t, 120, cfg.Server.ReadTimeout)
}

func TestNewConfigReadTimeoutCoversRestoreUpload(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SERVER_READ_TIMEOUT", 30)

	assert.Equal(t, MinServerReadTimeout, newConfig(v).Server.ReadTimeout)

	v.Set("SERVER_READ_TIMEOUT", 300)
	assert.Equal(t, 300, newConfig(v).Server.ReadTimeout)
}

func TestNewConfigOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", " Mongo ")
	v.Set("BACKUP_ARCHIVE", "MINIO")
	v.Set("MINIO_BUCKET", "dumps")

	cfg := newConfig(v)

	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Equal(t, ArchiveMinio, cfg.Backup.Archive)
	assert.Equal(t, "dumps", cfg.Backup.Minio.Bucket)
}

func TestDatabaseConfigURL(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "app",
		Password: "p@ss word",
		DBName:   "backoffice",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/backoffice?sslmode=disable", cfg.URL())
	assert.Equal(t, "host=db port=5432 user=app password=p@ss word dbname=backoffice sslmode=disable", cfg.DSN())
}

func TestReportConfigLocation(t *testing.T) {
	loc, err := ReportConfig{Timezone: "local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ReportConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = ReportConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestAuthConfigTokenTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, AuthConfig{}.TokenTTL())
	assert.Equal(t, 2*time.Hour, AuthConfig{ExpirationHours: 2}.TokenTTL())
}
