// backend-go/cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/api"
	"github.com/andresuchdata/backoffice/backend-go/internal/auth"
	"github.com/andresuchdata/backoffice/backend-go/internal/cache"
	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository/mongodb"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/backoffice/backend-go/internal/service"
	"github.com/andresuchdata/backoffice/backend-go/internal/storage"
	"github.com/andresuchdata/backoffice/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

// store bundles the backend-specific pieces selected by STORE_DRIVER.
type store struct {
	reports repository.ReportRepository
	dumper  repository.Dumper
	close   func()
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		logger.Log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer st.close()

	reportCache, err := cache.NewProfitLossCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Report cache unavailable, continuing without cache")
		reportCache = cache.NewNoopProfitLossCache()
	}

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	archive, err := storage.New(ctx, cfg.Backup)
	cancel()
	if err != nil {
		logger.Log.Fatal().Err(err).Str("archive", cfg.Backup.Archive).Msg("Failed to initialize backup archive")
	}

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize token service")
	}

	loc, err := cfg.Report.Location()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid report timezone")
	}

	// Initialize services
	reportService := service.NewReportService(st.reports, reportCache, service.WithLocation(loc))

	backupOpts := []service.BackupOption{service.WithTempDir(cfg.Backup.TempDir)}
	if archive != nil {
		backupOpts = append(backupOpts, service.WithArchive(archive, cfg.Backup.ArchivePrefix))
	}
	backupService := service.NewBackupService(st.dumper, reportCache, backupOpts...)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		ReportService:       reportService,
		BackupService:       backupService,
		Tokens:              tokens,
		BackupRatePerMinute: cfg.Backup.RatePerMinute,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Str("archive", cfg.Backup.Archive).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// A restore may still be running; give it time to finish.
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres, "":
		db, err := postgres.NewDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Database.DSN())
		if err != nil {
			db.Close()
			return nil, err
		}
		return &store{
			reports: postgres.NewReportRepository(db),
			dumper:  postgres.NewDumper(pool),
			close: func() {
				pool.Close()
				db.Close()
			},
		}, nil

	case config.StoreDriverMongo:
		client, db, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return &store{
			reports: mongodb.NewReportRepository(db),
			dumper:  mongodb.NewDumper(db),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					logger.Log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
