package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/api/middleware"
	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/export"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ProfitLossComputer is implemented by service.ReportService.
type ProfitLossComputer interface {
	ComputeProfitLoss(ctx context.Context, query domain.ProfitLossQuery) (*domain.ProfitLossSummary, error)
}

type ReportHandler struct {
	service ProfitLossComputer
}

func NewReportHandler(service ProfitLossComputer) *ReportHandler {
	return &ReportHandler{service: service}
}

// parseQuery reads ?filter= and ?branch=. Branch admins always get their own branch.
func (h *ReportHandler) parseQuery(c *gin.Context) domain.ProfitLossQuery {
	query := domain.ProfitLossQuery{
		Period:   domain.ParseReportPeriod(c.Query("filter")),
		BranchID: strings.TrimSpace(c.Query("branch")),
	}
	if principal, ok := middleware.PrincipalFrom(c); ok {
		query.BranchID = principal.ScopeBranch(query.BranchID)
	}
	return query
}

// GetProfitLoss handles GET /api/reports/profit-loss
func (h *ReportHandler) GetProfitLoss(c *gin.Context) {
	summary, err := h.service.ComputeProfitLoss(c.Request.Context(), h.parseQuery(c))
	if err != nil {
		reportError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   summary,
	})
}

// ExportProfitLoss handles GET /api/reports/profit-loss/export
func (h *ReportHandler) ExportProfitLoss(c *gin.Context) {
	summary, err := h.service.ComputeProfitLoss(c.Request.Context(), h.parseQuery(c))
	if err != nil {
		reportError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteProfitLoss(&buf, summary); err != nil {
		reportError(c, apperror.Wrap(err, apperror.KindServer, "failed to build spreadsheet"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.ProfitLossFilename(summary)))
	c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

func reportError(c *gin.Context, err error) {
	log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("report: request failed")
	c.JSON(apperror.HTTPStatus(err), gin.H{
		"status":  "error",
		"message": apperror.Message(err),
	})
}
