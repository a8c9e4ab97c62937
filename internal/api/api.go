// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/api/handlers"
	"github.com/andresuchdata/backoffice/backend-go/internal/api/middleware"
	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	ReportService       handlers.ProfitLossComputer
	BackupService       handlers.BackupManager
	Tokens              middleware.TokenValidator
	BackupRatePerMinute int
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil || services.Tokens == nil {
		return router
	}

	apiGroup := router.Group("/api", middleware.Auth(services.Tokens))

	if services.ReportService != nil {
		reportHandler := handlers.NewReportHandler(services.ReportService)
		reportGroup := apiGroup.Group("/reports")
		{
			reportGroup.GET("/profit-loss", reportHandler.GetProfitLoss)
			reportGroup.GET("/profit-loss/export", reportHandler.ExportProfitLoss)
		}
	}

	if services.BackupService != nil {
		backupHandler := handlers.NewBackupHandler(services.BackupService)
		backupGroup := apiGroup.Group("/backup",
			middleware.RequireRole(apperror.MsgAdminOnly, domain.RoleSuperAdmin),
			middleware.RateLimit(middleware.NewRateLimiter(services.BackupRatePerMinute)),
		)
		{
			backupGroup.GET("/database", backupHandler.ExportDatabase)
			backupGroup.POST("/restore", backupHandler.RestoreDatabase)
			backupGroup.GET("/archives", backupHandler.ListArchives)
			backupGroup.POST("/archives/:name/restore", backupHandler.RestoreArchive)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
