package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/go-resty/resty/v2"
)

const msgReportForbidden = "you are not allowed to view this report"

// ReportClient fetches reports from the API.
type ReportClient struct {
	http *resty.Client
	cfg  Config
}

func NewReportClient(cfg Config) *ReportClient {
	cfg = cfg.withDefaults()
	return &ReportClient{http: newRestyClient(cfg), cfg: cfg}
}

type profitLossEnvelope struct {
	Status  string                    `json:"status"`
	Message string                    `json:"message"`
	Data    *domain.ProfitLossSummary `json:"data"`
}

// ProfitLoss requests the summary for the period (minggu, bulan, tahun) and an
// optional branch.
func (c *ReportClient) ProfitLoss(ctx context.Context, period domain.ReportPeriod, branchID string) (*domain.ProfitLossSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReportTimeout)
	defer cancel()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("filter", string(domain.ParseReportPeriod(string(period))))
	if branch := strings.TrimSpace(branchID); branch != "" {
		req.SetQueryParam("branch", branch)
	}

	resp, err := req.Get(ProfitLossPath)
	if err != nil {
		return nil, connectivityError(err)
	}

	status := resp.StatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, authorizationError(status, resp.Body(), msgReportForbidden)
	}

	var envelope profitLossEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		if status >= http.StatusInternalServerError {
			return nil, apperror.Wrap(statusErr(status), apperror.KindServer, apperror.MsgServer).WithStatus(status)
		}
		return nil, apperror.Wrap(err, apperror.KindAggregation, apperror.MsgReportFailed).WithStatus(status)
	}

	if envelope.Status != "success" || envelope.Data == nil || status < 200 || status > 299 {
		message := envelope.Message
		if message == "" {
			message = apperror.MsgReportFailed
		}
		return nil, apperror.Wrap(statusErr(status), apperror.KindAggregation, message).WithStatus(status)
	}

	return envelope.Data, nil
}
